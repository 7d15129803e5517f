package search

// ComplaintRecord is the data we index for a complaint.
type ComplaintRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Status string
	Limit  int
	// AddressContains keeps only complaints whose address contains it, ignoring case.
	// It is applied before Limit.
	AddressContains string
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
