package index

import "time"

// CompleteEvent announces a freshly written index. The builder publishes it
// and searchers reload on it.
type CompleteEvent struct {
	BuildID     string    `json:"build_id"`
	IndexPath   string    `json:"index_path"`
	Documents   int       `json:"documents"`
	Pages       int       `json:"pages"`
	Words       int       `json:"words"`
	Failed      []string  `json:"failed,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
