package models

// FlaggedLink is a persisted record of a link classified as a threat.
// Records are immutable once stored.
type FlaggedLink struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Sender string `json:"sender"`
	// Timestamp is the epoch millis of the originating message, not of the insert
	Timestamp   int64       `json:"timestamp"`
	Reason      string      `json:"reason"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	// Message is the full original body kept for audit
	Message string `json:"message"`
}

// DedupKey identifies one flagged occurrence; the store keeps at most one row per key
type DedupKey struct {
	URL       string
	Sender    string
	Timestamp int64
}

// Key returns the dedup key of the link
func (f *FlaggedLink) Key() DedupKey {
	return DedupKey{URL: f.URL, Sender: f.Sender, Timestamp: f.Timestamp}
}

// NewFlaggedLink builds the record for a positively classified URL found in msg
func NewFlaggedLink(url string, msg RawMessage, result ClassificationResult) *FlaggedLink {
	return &FlaggedLink{
		URL:         url,
		Sender:      msg.Sender,
		Timestamp:   msg.ReceivedAtMillis,
		Reason:      result.Reason,
		ThreatLevel: result.Level,
		Message:     msg.Body,
	}
}
