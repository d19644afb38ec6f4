// Package services implements the read side of the pipeline used by the
// HTTP handlers. It keeps business rules out of the transport layer.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//
// # Series Service
//
// SeriesService serves stored reports of one rule version and the series
// derived from them. Derived series are cached and rebuilt only when the
// stored report history changes:
//
//	svc := services.NewSeriesService(reportStore, parser.RuleVersion(), manager.BuildSeries, logger)
//	points, err := svc.Category(ctx, domain.CategoryArea, "City of Alhambra")
//
// # Health Service
//
// HealthService reports liveness together with the rule version in force
// and the number of stored reports.
package services
