package domain

// Category is one node of the two-level category tree used by the
// categorization stage.
type Category struct {
	ID       string
	Name     string
	ParentID string // empty for top-level categories
}

// CategoryLink attaches a document to a category with a per-link confidence.
type CategoryLink struct {
	DocumentID string
	CategoryID string
	Confidence float64
}
