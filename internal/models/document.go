package models

import "encoding/json"

// Source sentinels used when a document's provenance is not known.
const (
	SourceUnknown   = "unknown"
	SourceRetriever = "retriever"
	SourceSystem    = "system"
)

type Document struct {
	ID       string
	Source   string
	Content  string
	Metadata map[string]interface{}
}

// ProcessedDocument is a scraped page split into corpus-sized chunks.
type ProcessedDocument struct {
	Document
	Title  string
	URL    string
	Chunks []string
}

type Location struct {
	District string `json:"district"`
	State    string `json:"state"`
}

// Query is a single question for the answer pipeline. Weather and Market
// carry the raw upstream payloads and may be nil.
type Query struct {
	Text     string
	Language string
	Pincode  string
	Location Location
	Weather  json.RawMessage
	Market   json.RawMessage
}

type AnswerResult struct {
	Text       string   `json:"response"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Fallback   bool     `json:"fallback"`
	Category   string   `json:"category,omitempty"`
}
