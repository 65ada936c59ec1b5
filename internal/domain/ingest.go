package domain

import "fmt"

// DefaultedField records a numeric field that failed to parse and was
// replaced with zero during ingestion.
type DefaultedField struct {
	Coin  string
	Field string
	Raw   string
}

// SkippedRecord records a raw record that could not be minimally
// identified and was dropped from the batch.
type SkippedRecord struct {
	Coin   string
	Reason string
}

// IngestReport summarizes one normalization batch. Malformed input is
// reported here instead of failing the batch or being silently lost.
type IngestReport struct {
	Parsed    int
	Skipped   []SkippedRecord
	Defaulted []DefaultedField
}

// AddSkip records a skipped record.
func (r *IngestReport) AddSkip(coin, reason string) {
	r.Skipped = append(r.Skipped, SkippedRecord{Coin: coin, Reason: reason})
}

// AddDefault records a field that fell back to zero.
func (r *IngestReport) AddDefault(coin, field, raw string) {
	r.Defaulted = append(r.Defaulted, DefaultedField{Coin: coin, Field: field, Raw: raw})
}

// Clean reports whether the batch parsed without skips or defaults.
func (r *IngestReport) Clean() bool {
	return len(r.Skipped) == 0 && len(r.Defaulted) == 0
}

// String renders a short human-readable summary.
func (r *IngestReport) String() string {
	return fmt.Sprintf("parsed=%d skipped=%d defaulted=%d",
		r.Parsed, len(r.Skipped), len(r.Defaulted))
}
