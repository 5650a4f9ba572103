package naver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

const (
	shopSearchPath      = "/v1/search/shop.json"
	datalabSearchPath   = "/v1/datalab/search"
	shoppingInsightPath = "/v1/datalab/shopping/categories"

	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an upstream error body is kept.
	maxErrorBody = 4 << 10
)

var (
	// ErrNotConfigured is returned when the client id or secret is missing.
	ErrNotConfigured = errors.New("naver: client id and secret are required")

	// ErrEmptyQuery is returned by SearchShop for a blank query.
	ErrEmptyQuery = errors.New("naver: query is required")
)

// UpstreamError is a non-2xx response from the Naver API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("naver: upstream status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	// Transport overrides the base HTTP transport (tests).
	Transport http.RoundTripper
}

// Client calls the Naver Open API.
type Client struct {
	baseURL    string
	configured bool
	http       *http.Client
	group      singleflight.Group
}

// New builds a Client. A Client without credentials is valid; every call
// returns ErrNotConfigured until credentials are supplied.
func New(cfg Config) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		http: &http.Client{
			Transport: &credentialsRoundTripper{base: base, id: cfg.ClientID, secret: cfg.ClientSecret},
			Timeout:   timeout,
		},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.configured }

// credentialsRoundTripper injects the Naver credential headers into every
// outgoing request.
type credentialsRoundTripper struct {
	base       http.RoundTripper
	id, secret string
}

func (t *credentialsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Naver-Client-Id", t.id)
	req.Header.Set("X-Naver-Client-Secret", t.secret)
	return t.base.RoundTrip(req)
}

// SearchShop runs a shopping search and maps the items to products.
func (c *Client) SearchShop(ctx context.Context, q ShopQuery) (*ShopResult, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	q = q.Normalize()
	if q.Query == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("display", strconv.Itoa(q.Display))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("sort", q.Sort)
	endpoint := c.baseURL + shopSearchPath + "?" + params.Encode()

	// The shared call must not die with whichever caller started it.
	v, err, shared := c.group.Do(endpoint, func() (interface{}, error) {
		return c.fetchShop(context.WithoutCancel(ctx), endpoint, q)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("naver: shared in-flight shop search", "query", q.Query)
	}
	res := *v.(*ShopResult)
	res.Products = append([]types.Product(nil), res.Products...)
	return &res, nil
}

func (c *Client) fetchShop(ctx context.Context, endpoint string, q ShopQuery) (*ShopResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("naver: build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var raw shopResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("naver: decode shop response: %w", err)
	}

	products := make([]types.Product, 0, len(raw.Items))
	for _, it := range raw.Items {
		products = append(products, it.toProduct())
	}
	total := len(products)
	if raw.Total != nil {
		total = *raw.Total
	}
	return &ShopResult{
		Products: products,
		Total:    total,
		Display:  q.Display,
		Start:    q.Start,
	}, nil
}

// DatalabSearch forwards a search-trend request body and returns the raw JSON
// response.
func (c *Client) DatalabSearch(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(ctx, datalabSearchPath, body)
}

// ShoppingInsight forwards a shopping category insight request body and
// returns the raw JSON response.
func (c *Client) ShoppingInsight(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(ctx, shoppingInsightPath, body)
}

func (c *Client) passthrough(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("naver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	out, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("naver: %s returned invalid JSON", path)
	}
	return json.RawMessage(out), nil
}

// do executes req and returns the body of a 2xx response. Non-2xx responses
// become *UpstreamError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Warn("naver: upstream error", "path", req.URL.Path, "status", resp.StatusCode)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("naver: read body: %w", err)
	}
	return body, nil
}
