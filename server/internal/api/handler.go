package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/server/internal/analysis"
	"github.com/contextcommerce/contextcommerce/server/internal/analytics"
	"github.com/contextcommerce/contextcommerce/server/internal/catalog"
	"github.com/contextcommerce/contextcommerce/server/internal/metrics"
	"github.com/contextcommerce/contextcommerce/server/internal/naver"
	"github.com/contextcommerce/contextcommerce/server/internal/store"
)

// maxBodyBytes caps JSON request bodies other than /events.
const maxBodyBytes = 1 << 20

// Proxy endpoint labels for proxy_requests_total.
const (
	endpointShop            = "shop"
	endpointDatalabSearch   = "datalab_search"
	endpointShoppingInsight = "shopping_insight"
)

// Options wires the handler to its collaborators. Catalog, Naver, Analyzer,
// Store and Metrics are required.
type Options struct {
	Catalog  *catalog.Catalog
	Naver    *naver.Client
	Analyzer *analysis.Analyzer
	Store    store.Store
	Metrics  *metrics.Metrics

	// Events serves POST /events. Stream serves GET /ws/stream.
	Events http.Handler
	Stream http.Handler

	// Auth guards the mutating catalog and match routes. nil allows all.
	Auth func(http.Handler) http.Handler

	BasePath      string
	AllowOrigin   string
	AuthHeader    string
	AnalyticsDays int

	// Fallback serves requests no route matched, e.g. a static UI. When nil
	// they get a JSON 404.
	Fallback http.Handler
}

// Handler is the HTTP handler for every server route.
type Handler struct {
	opts   Options
	router *mux.Router
	now    func() time.Time
}

// New creates a Handler and registers all routes.
func New(opts Options) *Handler {
	if opts.Auth == nil {
		opts.Auth = func(h http.Handler) http.Handler { return h }
	}
	if opts.AnalyticsDays <= 0 {
		opts.AnalyticsDays = analytics.DefaultDays
	}
	h := &Handler{opts: opts, router: mux.NewRouter(), now: time.Now}

	r := h.router
	if opts.BasePath != "" {
		r = h.router.PathPrefix(opts.BasePath).Subrouter()
	}
	r.Use(h.instrument)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	r.Handle("/products", opts.Auth(http.HandlerFunc(h.createProduct))).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	r.Handle("/products/{id}", opts.Auth(http.HandlerFunc(h.deleteProduct))).Methods(http.MethodDelete)

	r.HandleFunc("/analysis/article", h.analyzeArticle).Methods(http.MethodPost)

	r.Handle("/matches", opts.Auth(http.HandlerFunc(h.saveMatches))).Methods(http.MethodPost)
	r.HandleFunc("/matches", h.listMatches).Methods(http.MethodGet)

	r.HandleFunc("/datalab/search-trend", h.datalabSearch).Methods(http.MethodPost)
	r.HandleFunc("/datalab/shopping-insight", h.shoppingInsight).Methods(http.MethodPost)

	if opts.Events != nil {
		r.Handle("/events", opts.Events).Methods(http.MethodPost)
	}
	r.HandleFunc("/analytics", h.getAnalytics).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	if opts.Stream != nil {
		r.Handle("/ws/stream", opts.Stream).Methods(http.MethodGet)
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "Not found")
	})
	var fallback http.Handler = notFound
	if opts.Fallback != nil {
		fallback = opts.Fallback
	}
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	for _, router := range []*mux.Router{h.router, r} {
		router.NotFoundHandler = fallback
		router.MethodNotAllowedHandler = methodNotAllowed
	}

	return h
}

// ServeHTTP applies CORS and answers preflight requests before routing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", h.opts.AllowOrigin)
	hdr.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	allowHeaders := "Content-Type"
	if h.opts.AuthHeader != "" {
		allowHeaders += ", " + h.opts.AuthHeader
	}
	hdr.Set("Access-Control-Allow-Headers", allowHeaders)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /health.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		OK:       true,
		Status:   "proxy-ready",
		Naver:    h.opts.Naver.Configured(),
		Products: h.opts.Catalog.Len(),
	})
}

// listProducts returns GET /products. With Naver credentials the query is
// proxied to the shopping search; without them the local catalog answers.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := naver.ShopQuery{
		Query:   qs.Get("q"),
		Display: atoiOrZero(qs.Get("display")),
		Start:   atoiOrZero(qs.Get("start")),
		Sort:    qs.Get("sort"),
	}.Normalize()

	if !h.opts.Naver.Configured() {
		h.proxyOutcome(endpointShop, metrics.OutcomeFallback)
		jsonResp(w, http.StatusOK, h.catalogPage(q))
		return
	}

	if q.Query == "" {
		jsonErr(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	res, err := h.opts.Naver.SearchShop(r.Context(), q)
	if err != nil {
		h.writeUpstreamError(w, endpointShop, "Naver API error: ", err)
		return
	}
	h.proxyOutcome(endpointShop, metrics.OutcomeOK)
	jsonResp(w, http.StatusOK, ProductsResponse{
		Products: nonNilProducts(res.Products),
		Source:   "naver",
		Total:    res.Total,
		Display:  res.Display,
		Start:    res.Start,
	})
}

func (h *Handler) catalogPage(q naver.ShopQuery) ProductsResponse {
	all := h.opts.Catalog.Search(q.Query, q.Sort)
	from := min(q.Start-1, len(all))
	to := min(from+q.Display, len(all))
	return ProductsResponse{
		Products: nonNilProducts(all[from:to]),
		Source:   "fallback",
		Total:    len(all),
		Display:  q.Display,
		Start:    q.Start,
	}
}

// getProduct returns GET /products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.opts.Catalog.Get(mux.Vars(r)["id"])
	if err != nil {
		jsonErr(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResp(w, http.StatusOK, p)
}

// createProduct handles POST /products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input types.Product
	if err := decodeBody(w, r, &input); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.opts.Catalog.Create(input)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "catalog: "))
		return
	}
	slog.Info("api: product created", "id", p.ID, "name", p.Name)
	jsonResp(w, http.StatusCreated, ProductResponse{Product: p})
}

// deleteProduct handles DELETE /products/{id}.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.opts.Catalog.Delete(id); err != nil {
		jsonErr(w, http.StatusNotFound, "product not found")
		return
	}
	slog.Info("api: product deleted", "id", id)
	jsonResp(w, http.StatusOK, DeletedResponse{Deleted: true})
}

// analyzeArticle handles POST /analysis/article. An empty body is treated
// as an empty request.
func (h *Handler) analyzeArticle(w http.ResponseWriter, r *http.Request) {
	var req analysis.ArticleRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, MatchesResponse{Matches: h.opts.Analyzer.Analyze(req)})
}

// saveMatches handles POST /matches.
func (h *Handler) saveMatches(w http.ResponseWriter, r *http.Request) {
	var req SaveMatchesRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ArticleID = strings.TrimSpace(req.ArticleID)
	if req.ArticleID == "" {
		jsonErr(w, http.StatusBadRequest, "articleId is required")
		return
	}
	n, err := h.opts.Store.SaveMatches(r.Context(), req.ArticleID, req.Matches)
	if err != nil {
		slog.Error("api: save matches", "article_id", req.ArticleID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "failed to save matches")
		return
	}
	jsonResp(w, http.StatusOK, SaveMatchesResponse{Saved: n})
}

// listMatches returns GET /matches?articleId=.
func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	articleID := strings.TrimSpace(r.URL.Query().Get("articleId"))
	if articleID == "" {
		jsonErr(w, http.StatusBadRequest, "articleId parameter is required")
		return
	}
	matches, err := h.opts.Store.Matches(r.Context(), articleID)
	if err != nil {
		slog.Error("api: load matches", "article_id", articleID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "failed to load matches")
		return
	}
	if matches == nil {
		matches = []types.Match{}
	}
	jsonResp(w, http.StatusOK, MatchesResponse{Matches: matches})
}

// datalabSearch proxies POST /datalab/search-trend.
func (h *Handler) datalabSearch(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, endpointDatalabSearch, "Naver Datalab error: ", h.opts.Naver.DatalabSearch)
}

// shoppingInsight proxies POST /datalab/shopping-insight.
func (h *Handler) shoppingInsight(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, endpointShoppingInsight, "Naver Shopping Insight error: ", h.opts.Naver.ShoppingInsight)
}

type passthroughFunc func(ctx context.Context, body json.RawMessage) (json.RawMessage, error)

func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request, endpoint, prefix string, call passthroughFunc) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	out, err := call(r.Context(), body)
	if err != nil {
		h.writeUpstreamError(w, endpoint, prefix, err)
		return
	}
	h.proxyOutcome(endpoint, metrics.OutcomeOK)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out) //nolint:errcheck
}

// getAnalytics returns GET /analytics?days=N.
func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	days := h.opts.AnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > analytics.MaxDays {
			jsonErr(w, http.StatusBadRequest, "days must be an integer between 1 and 90")
			return
		}
		days = n
	}
	summary, err := analytics.Build(r.Context(), h.opts.Store, days, h.now())
	if err != nil {
		slog.Error("api: build analytics", "err", err)
		jsonErr(w, http.StatusInternalServerError, "failed to build analytics")
		return
	}
	jsonResp(w, http.StatusOK, summary)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) writeUpstreamError(w http.ResponseWriter, endpoint, prefix string, err error) {
	var upstream *naver.UpstreamError
	switch {
	case errors.As(err, &upstream):
		h.proxyOutcome(endpoint, metrics.OutcomeUpstream)
		slog.Warn("api: upstream error", "endpoint", endpoint, "status", upstream.Status)
		jsonErr(w, upstream.Status, prefix+upstream.Body)
	case errors.Is(err, naver.ErrNotConfigured):
		h.proxyOutcome(endpoint, metrics.OutcomeError)
		jsonErr(w, http.StatusServiceUnavailable, "Naver API credentials are not configured")
	default:
		h.proxyOutcome(endpoint, metrics.OutcomeError)
		slog.Error("api: proxy request failed", "endpoint", endpoint, "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) proxyOutcome(endpoint, outcome string) {
	h.opts.Metrics.ProxyRequests.WithLabelValues(endpoint, outcome).Inc()
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.New("request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, ErrorResponse{Error: msg})
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func nonNilProducts(ps []types.Product) []types.Product {
	if ps == nil {
		return []types.Product{}
	}
	return ps
}
