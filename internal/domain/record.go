package domain

import "time"

// Rate discipline defaults applied to newly seen domains.
const (
	DefaultMinDelayMS   = 1000
	DefaultMaxPerMinute = 10
)

// DomainRecord is the learned state for one registrable domain.
type DomainRecord struct {
	Domain       string  `db:"domain"         json:"domain"`
	BestConfigID *string `db:"best_config_id" json:"best_config_id,omitempty"`
	Confidence   float64 `db:"confidence"     json:"confidence"`

	// Rate discipline
	MinDelayMS   int `db:"min_delay_ms"   json:"min_delay_ms"`
	MaxPerMinute int `db:"max_per_minute" json:"max_per_minute"`

	// Observed block indicators, free-form tags
	BlockIndicators StringList `db:"block_indicators" json:"block_indicators"`

	FirstSeen   time.Time `db:"first_seen"   json:"first_seen"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
	SampleCount int       `db:"sample_count" json:"sample_count"`
}

// Similarity kinds for cold-start transfer.
const (
	SimilarityTLD        = "tld"
	SimilarityTechnology = "technology"
	SimilarityBehavior   = "behavior"
)

// Similarity is a weighted edge between two domains, used only to seed
// cold starts. It is advisory, never authoritative.
type Similarity struct {
	DomainA string  `db:"domain_a" json:"domain_a"`
	DomainB string  `db:"domain_b" json:"domain_b"`
	Kind    string  `db:"kind"     json:"kind"`
	Weight  float64 `db:"weight"   json:"weight"`
}
