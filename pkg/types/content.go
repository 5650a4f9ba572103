package types

// Match links a keyword found in an article to a product recommendation.
type Match struct {
	ID              string  `json:"id"`
	ArticleID       string  `json:"articleId"`
	ProductID       string  `json:"productId"`
	MatchedKeyword  string  `json:"matchedKeyword"`
	ContextSentence string  `json:"contextSentence"`
	ContextScore    float64 `json:"contextScore"`
	IsApproved      bool    `json:"isApproved"`
	ReasonLabel     string  `json:"reasonLabel,omitempty"`
}

// Article is an editorial piece that products are overlaid onto.
type Article struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Category        string   `json:"category,omitempty"`
	Author          string   `json:"author,omitempty"`
	HeroImage       string   `json:"heroImage,omitempty"`
	VideoLoopURL    string   `json:"videoLoopUrl,omitempty"`
	ReadTimeMinutes int      `json:"readTimeMinutes,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Position is a marker location as a percentage of the video frame.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VideoMarker pins a product to a time range of a shortform video.
type VideoMarker struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	Position  Position `json:"position"`
	Keyword   string   `json:"keyword"`
}

// Shortform is a short video with product markers.
type Shortform struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Category  string        `json:"category"`
	Brand     string        `json:"brand,omitempty"`
	VideoURL  string        `json:"videoUrl"`
	PosterURL string        `json:"posterUrl"`
	Markers   []VideoMarker `json:"markers"`
	Summary   string        `json:"summary,omitempty"`
}
