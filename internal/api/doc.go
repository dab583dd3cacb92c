// Package api exposes the query execution façade over HTTP using gin.
//
// Routes:
//
//	POST /queries                              register a query
//	GET  /queries                              list registered queries
//	GET  /queries/execute?query=<id>           execute synchronously
//	POST /queries/execute/async?query=<id>     schedule an async execution
//	GET  /queries/execute/async/:executionId   poll an async execution
//	GET  /healthz                              liveness
//	GET  /metrics                              Prometheus exposition
//
// Failures are rendered as {"error": CODE, "message": "..."}.
package api
