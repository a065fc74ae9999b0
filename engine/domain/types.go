// Package domain defines core domain types, constants, and validation for the
// JewelryBox engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

// Passage is a unit of indexed knowledge-base text. Passages are created
// during offline index construction and never mutated afterwards.
type Passage struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchHit is one retrieved passage with its similarity score in [0,1].
type SearchHit struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	URL     string  `json:"url,omitempty"`
	Domain  string  `json:"domain,omitempty"`
}

// IntentRecord maps an intent key to its trigger synonyms and exactly one
// call-to-action URL. Records are immutable after startup.
type IntentRecord struct {
	Key      string   `json:"key"`
	Synonyms []string `json:"synonyms"`
	URL      string   `json:"url"`
}

// Domain is a coarse classification label for a user utterance.
type Domain string

const (
	DomainProducts   Domain = "products"
	DomainServices   Domain = "services"
	DomainEducation  Domain = "education"
	DomainCommercial Domain = "commercial"
	DomainGeneral    Domain = "general"
)

// KnownDomains lists the classifiable domains in declaration order. General is
// not listed: it is the fallback when nothing scores, never a scored candidate.
var KnownDomains = []Domain{DomainProducts, DomainServices, DomainEducation, DomainCommercial}

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "human" or "ai"
	Content string `json:"content"`
}

// Query is a validated chat request.
type Query struct {
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	History   []Message `json:"history,omitempty"`
}
