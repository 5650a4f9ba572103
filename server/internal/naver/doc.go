// Package naver is a small client for the Naver Open API used by the proxy
// routes.
//
//	SearchShop       GET  /v1/search/shop.json, items mapped to types.Product
//	DatalabSearch    POST /v1/datalab/search (body passed through)
//	ShoppingInsight  POST /v1/datalab/shopping/categories (body passed through)
//
// Credentials are injected into every request by a RoundTripper. Identical
// concurrent shop searches share one upstream call.
package naver
