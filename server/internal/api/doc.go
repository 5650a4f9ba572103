// Package api implements the HTTP surface of contextcommerce-server.
//
// New(Options) returns a Handler that serves, under the optional base path:
//
//	GET    /health                     proxy status, Naver availability, catalog size
//	GET    /products                   Naver shop search, or the local catalog without credentials
//	POST   /products                   create a catalog product (auth)
//	GET    /products/{id}              one catalog product
//	DELETE /products/{id}              remove a catalog product (auth)
//	POST   /analysis/article           keyword matches for an article
//	POST   /matches                    replace the approved matches of an article (auth)
//	GET    /matches?articleId=         approved matches of an article
//	POST   /datalab/search-trend       Naver Datalab passthrough
//	POST   /datalab/shopping-insight   Naver Shopping Insight passthrough
//	POST   /events                     widget event ingest (package receiver)
//	GET    /analytics?days=N           daily impressions, clicks and CTR
//	GET    /metrics                    Prometheus exposition
//	GET    /ws/stream                  live analytics (package ws)
//
// Every response carries the CORS headers and OPTIONS requests get 204.
// Errors are JSON {"error": "..."}. Unknown routes return 404 and a known
// route with the wrong method returns 405.
//
// Routing uses github.com/gorilla/mux; JSON types are defined in types.go.
package api
