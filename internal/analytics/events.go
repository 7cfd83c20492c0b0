// Package analytics collects search events, publishes them to Kafka and
// aggregates them into usage statistics.
package analytics

import "time"

// SearchEvent describes one answered query.
type SearchEvent struct {
	Query     string    `json:"query"`
	Tokens    []string  `json:"tokens"`
	Results   int       `json:"results"`
	Limit     int       `json:"limit"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Version   string    `json:"index_version"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Empty reports whether the query had no searchable tokens.
func (e SearchEvent) Empty() bool { return len(e.Tokens) == 0 }
