package types

// ProductSource records where a catalog entry came from.
type ProductSource string

const (
	SourceAPI    ProductSource = "api"
	SourceCSV    ProductSource = "csv"
	SourceManual ProductSource = "manual"
	SourceSeed   ProductSource = "seed"
)

// ProductStatus is the merchandising state of a product.
type ProductStatus string

const (
	StatusActive ProductStatus = "active"
	StatusPaused ProductStatus = "paused"
	StatusDraft  ProductStatus = "draft"
)

// Product is one shoppable item, either from the local catalog or mapped
// from a shopping search result.
type Product struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// Price is in KRW (whole won).
	Price    int64  `json:"price" yaml:"price"`
	ImageURL string `json:"imageUrl" yaml:"image_url"`
	LinkURL  string `json:"linkUrl" yaml:"link_url"`
	Brand    string `json:"brand,omitempty" yaml:"brand"`

	Source    ProductSource `json:"source,omitempty" yaml:"source"`
	UpdatedAt string        `json:"updatedAt,omitempty" yaml:"updated_at"` // YYYY-MM-DD
	Margin    *int64        `json:"margin,omitempty" yaml:"margin"`
	Category  string        `json:"category,omitempty" yaml:"category"`
	Rating    float64       `json:"rating,omitempty" yaml:"rating"`
	Badges    []string      `json:"badges,omitempty" yaml:"badges"`
	Tags      []string      `json:"tags,omitempty" yaml:"tags"`
	Status    ProductStatus `json:"status,omitempty" yaml:"status"`

	ShortformMatches int     `json:"shortformMatches,omitempty" yaml:"shortform_matches"`
	ArticleMatches   int     `json:"articleMatches,omitempty" yaml:"article_matches"`
	AIScore          float64 `json:"aiScore,omitempty" yaml:"ai_score"`
}

// TotalMatches is the number of content placements across shortform and articles.
func (p Product) TotalMatches() int {
	return p.ShortformMatches + p.ArticleMatches
}
