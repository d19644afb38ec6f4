// Package config loads the pipeline configuration.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources in increasing
// precedence:
//
//	1. Built-in defaults (Default)
//	2. An optional YAML file passed to Load
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern LACPH_<SECTION>_<FIELD>:
//
//	LACPH_FETCH_SOURCE=dir
//	LACPH_FETCH_CACHE_DIR=/var/lib/lacph/bulletins
//	LACPH_STORE_DRIVER=sqlite
//	LACPH_RULES_PATH=/etc/lacph/rules.yaml
//	LACPH_LOGGING_LEVEL=debug
//
// # Validation
//
// The assembled configuration is validated with go-playground/validator
// struct tags; any failure is returned as a CONFIG AppError.
package config
