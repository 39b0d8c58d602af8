package models

// Recommendation is a single ranked recommendation hit.
// Distance comes from the similarity index: smaller means more similar.
type Recommendation struct {
	BookID   string  `json:"book_id"`
	Title    string  `json:"title"`
	Distance float64 `json:"distance"`
}

// RecommendRequest is the body of a text-based recommendation request.
type RecommendRequest struct {
	Text  string `json:"text"`
	Count int    `json:"count,omitempty"`
}

// RecommendResponse is the response for both recommendation query shapes.
type RecommendResponse struct {
	Results     []Recommendation `json:"results"`
	Query       string           `json:"query,omitempty"`
	SourceBook  string           `json:"source_book,omitempty"`
	QueryTimeMS int64            `json:"query_time_ms"`
}
