package core

import (
	"time"
)

const (
	// LabelHam is the machine-readable label for legitimate mail
	LabelHam = 0
	// LabelSpam is the machine-readable label for spam
	LabelSpam = 1

	// PredictionHam is the human-readable ham label
	PredictionHam = "Ham"
	// PredictionSpam is the human-readable spam label
	PredictionSpam = "Spam"
)

// Email represents an email message
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Text returns the text the classifier sees for an email
func (e *Email) Text() string {
	if e.Subject == "" {
		return e.Body
	}
	return e.Subject + "\n" + e.Body
}

// FeatureVector is a sparse vector in the vectorizer's feature space.
// Indices are strictly increasing and aligned with Values.
type FeatureVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// NNZ returns the number of stored (non-zero) entries
func (v *FeatureVector) NNZ() int {
	return len(v.Indices)
}

// PredictionResult is the outcome of classifying one piece of text
type PredictionResult struct {
	Prediction           string  `json:"prediction"`
	Label                int     `json:"label"`
	Confidence           float64 `json:"confidence"`
	ConfidencePercentage float64 `json:"confidence_percentage"`
	RawScore             float64 `json:"raw_score"`
}

// IsSpam reports whether the result carries the spam label
func (r *PredictionResult) IsSpam() bool {
	return r.Label == LabelSpam
}

// BatchItem is one entry of a batch classification, in input order
type BatchItem struct {
	Index  int
	Result *PredictionResult
	Err    error
}

// BatchResult summarises a batch classification
type BatchResult struct {
	Total     int
	SpamCount int
	HamCount  int
	Items     []BatchItem
}

// EmailVerdict is the result of analysing a full email message
type EmailVerdict struct {
	IsSpam      bool
	Whitelisted bool
	Result      *PredictionResult
	AnalyzedAt  time.Time
}

// HistoryRecord is a retained prediction
type HistoryRecord struct {
	ID                   string    `json:"id"`
	Timestamp            time.Time `json:"timestamp"`
	EmailText            string    `json:"email_text"`
	Prediction           string    `json:"prediction"`
	Label                int       `json:"label"`
	Confidence           float64   `json:"confidence"`
	ConfidencePercentage float64   `json:"confidence_percentage"`
	RawScore             float64   `json:"raw_score"`
}

// ModelInfo describes the loaded classifier and its offline evaluation
type ModelInfo struct {
	ModelType     string  `json:"model_type"`
	Features      int     `json:"features"`
	Accuracy      float64 `json:"accuracy"`
	PrecisionHam  float64 `json:"precision_ham"`
	PrecisionSpam float64 `json:"precision_spam"`
	RecallHam     float64 `json:"recall_ham"`
	RecallSpam    float64 `json:"recall_spam"`
	F1Ham         float64 `json:"f1_ham"`
	F1Spam        float64 `json:"f1_spam"`
	TN            int     `json:"TN"`
	FP            int     `json:"FP"`
	FN            int     `json:"FN"`
	TP            int     `json:"TP"`
}
