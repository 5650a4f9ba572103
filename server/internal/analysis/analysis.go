// Package analysis finds product placement candidates in article text.
//
// The matcher is rule-based: it tokenizes the plain text, keeps the first
// distinct keywords and scores them by position. A keyword that appears in
// the catalog is linked to that product; otherwise the match carries a
// placeholder product id for an editor to replace.
package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

const (
	// DefaultArticleID is used when a request does not name its article.
	DefaultArticleID = "demo_article"

	fallbackContext = "추출된 키워드 기반 매칭"

	reasonCatalog     = "catalog match"
	reasonPlaceholder = "LLM stub"

	topScore   = 95
	scoreStep  = 5
	floorScore = 60
)

// ArticleRequest is the body of POST /analysis/article.
type ArticleRequest struct {
	ArticleID string `json:"articleId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

// ProductLookup finds a catalog product for a keyword.
type ProductLookup interface {
	Lookup(keyword string) (types.Product, bool)
}

// Analyzer turns article text into keyword matches.
type Analyzer struct {
	products     ProductLookup
	maxMatches   int
	contextChars int
}

// New returns an Analyzer. products may be nil, in which case every match
// gets a placeholder product id.
func New(products ProductLookup, maxMatches, contextChars int) *Analyzer {
	return &Analyzer{products: products, maxMatches: maxMatches, contextChars: contextChars}
}

// Analyze returns up to maxMatches matches in keyword order. The result is
// never nil.
func (a *Analyzer) Analyze(req ArticleRequest) []types.Match {
	articleID := req.ArticleID
	if articleID == "" {
		articleID = DefaultArticleID
	}

	keywords := Keywords(req.Content, a.maxMatches)
	context := truncateRunes(req.Content, a.contextChars)
	if context == "" {
		context = fallbackContext
	}

	matches := make([]types.Match, 0, len(keywords))
	for i, kw := range keywords {
		m := types.Match{
			ID:              fmt.Sprintf("m%d", i+1),
			ArticleID:       articleID,
			ProductID:       fmt.Sprintf("p%d", i+1),
			MatchedKeyword:  kw,
			ContextSentence: context,
			ContextScore:    float64(max(floorScore, topScore-scoreStep*i)),
			IsApproved:      true,
			ReasonLabel:     reasonPlaceholder,
		}
		if a.products != nil {
			if p, ok := a.products.Lookup(kw); ok {
				m.ProductID = p.ID
				m.ReasonLabel = reasonCatalog
			}
		}
		matches = append(matches, m)
	}
	return matches
}

var markup = regexp.MustCompile(`<[^>]*>`)

// Keywords strips markup, splits on whitespace, drops single-character
// tokens and returns at most limit distinct tokens in first-seen order.
func Keywords(content string, limit int) []string {
	fields := strings.Fields(markup.ReplaceAllString(content, " "))
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, min(limit, len(fields)))
	for _, f := range fields {
		if len(out) == limit {
			break
		}
		if utf8.RuneCountInString(f) <= 1 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
