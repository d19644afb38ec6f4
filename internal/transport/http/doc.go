// Package http implements the read-only HTTP API over stored reports and
// derived series. Handlers are a thin layer between HTTP transport and the
// services package.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//
// # Routes
//
//	GET /healthz               liveness, rule version and report count
//	GET /metrics               Prometheus metrics
//	GET /reports               dates with a stored report
//	GET /reports/{date}        one parsed report
//	GET /series/{category}     one derived series, ?group= filters a group
//
// # Error Handling
//
// Service errors are mapped with errors.FromError and rendered as
//
//	{
//	    "success": false,
//	    "error": {
//	        "status_code": 404,
//	        "error_code": "NOT_FOUND",
//	        "message": "report 2020-04-14 not found"
//	    }
//	}
package http
