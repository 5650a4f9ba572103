package api

import "github.com/contextcommerce/contextcommerce/pkg/types"

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Status   string `json:"status"`
	Naver    bool   `json:"naver"`
	Products int    `json:"products"`
}

// ProductsResponse is the payload for GET /products.
type ProductsResponse struct {
	Products []types.Product `json:"products"`
	// Source is "naver" for proxied results and "fallback" for the local catalog.
	Source  string `json:"source"`
	Total   int    `json:"total"`
	Display int    `json:"display"`
	Start   int    `json:"start"`
}

// ProductResponse wraps a single created product.
type ProductResponse struct {
	Product types.Product `json:"product"`
}

// DeletedResponse is the payload for DELETE /products/{id}.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

// MatchesResponse is the payload for POST /analysis/article and GET /matches.
type MatchesResponse struct {
	Matches []types.Match `json:"matches"`
}

// SaveMatchesRequest is the body of POST /matches.
type SaveMatchesRequest struct {
	ArticleID string        `json:"articleId"`
	Matches   []types.Match `json:"matches"`
}

// SaveMatchesResponse is the payload for POST /matches.
type SaveMatchesResponse struct {
	Saved int `json:"saved"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
