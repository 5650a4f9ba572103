package naver

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// Shop search limits imposed by the Naver API.
const (
	DefaultDisplay = 20
	MaxDisplay     = 40
	DefaultSort    = "sim"
)

// fallbackDescription is used when an item has neither a mall name nor a maker.
const fallbackDescription = "네이버 쇼핑 상품"

// ShopQuery is one shopping search request.
type ShopQuery struct {
	Query   string
	Display int
	Start   int
	// Sort is one of: sim | date | asc | dsc | pop.
	Sort string
}

// Normalize trims the query and clamps paging and sort into the ranges the
// API accepts.
func (q ShopQuery) Normalize() ShopQuery {
	q.Query = strings.TrimSpace(q.Query)
	if q.Display == 0 {
		q.Display = DefaultDisplay
	}
	q.Display = min(max(q.Display, 1), MaxDisplay)
	q.Start = max(q.Start, 1)
	if !ValidSort(q.Sort) {
		q.Sort = DefaultSort
	}
	return q
}

// ValidSort reports whether s is a sort key the shop search understands.
func ValidSort(s string) bool {
	switch s {
	case "sim", "date", "asc", "dsc", "pop":
		return true
	}
	return false
}

// ShopResult is a mapped page of shopping results.
type ShopResult struct {
	Products []types.Product
	Total    int
	Display  int
	Start    int
}

type shopResponse struct {
	Total *int       `json:"total"`
	Items []shopItem `json:"items"`
}

type shopItem struct {
	ProductID itemID `json:"productId"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Image     string `json:"image"`
	LPrice    string `json:"lprice"`
	MallName  string `json:"mallName"`
	Maker     string `json:"maker"`
	Brand     string `json:"brand"`
	Category1 string `json:"category1"`
}

func (it shopItem) toProduct() types.Product {
	desc := it.MallName
	if desc == "" {
		desc = it.Maker
	}
	if desc == "" {
		desc = fallbackDescription
	}
	price, err := strconv.ParseInt(strings.TrimSpace(it.LPrice), 10, 64)
	if err != nil {
		price = 0
	}
	return types.Product{
		ID:          string(it.ProductID),
		Name:        StripHTML(it.Title),
		Description: desc,
		Price:       price,
		ImageURL:    it.Image,
		LinkURL:     it.Link,
		Brand:       it.Brand,
		Category:    it.Category1,
		Source:      types.SourceAPI,
	}
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

var entityReplacer = strings.NewReplacer("&quot;", `"`, "&amp;", "&")

// StripHTML removes markup tags (search highlights such as <b>) and decodes
// the two entities the shop API emits.
func StripHTML(s string) string {
	return entityReplacer.Replace(tagPattern.ReplaceAllString(s, ""))
}

// itemID accepts productId as either a JSON string or a number.
type itemID string

func (id *itemID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = itemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = itemID(n.String())
	return nil
}
