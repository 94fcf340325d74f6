package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryFormatVersion is reported in history metadata
const HistoryFormatVersion = "1.0"

// Statistics aggregates the recorded predictions for dashboards
type Statistics struct {
	TotalPredictions  int     `json:"total_predictions"`
	SpamCount         int     `json:"spam_count"`
	HamCount          int     `json:"ham_count"`
	SpamPercentage    float64 `json:"spam_percentage"`
	HamPercentage     float64 `json:"ham_percentage"`
	AverageConfidence float64 `json:"average_confidence"`
	MaxConfidence     float64 `json:"max_confidence"`
	MinConfidence     float64 `json:"min_confidence"`
}

// Metadata summarises the history store
type Metadata struct {
	CreatedAt         time.Time `json:"created_at"`
	LastUpdated       time.Time `json:"last_updated"`
	Version           string    `json:"version"`
	TotalPredictions  int       `json:"total_predictions"`
	TotalSpam         int       `json:"total_spam"`
	TotalHam          int       `json:"total_ham"`
	AverageConfidence float64   `json:"average_confidence"`
}

// ComputeStatistics aggregates confidence percentages, rounded to two decimals
func ComputeStatistics(records []*HistoryRecord) *Statistics {
	stats := &Statistics{}
	if len(records) == 0 {
		return stats
	}

	total := decimal.Zero
	minConf := decimal.NewFromFloat(records[0].ConfidencePercentage)
	maxConf := minConf
	for _, r := range records {
		if r.Prediction == PredictionSpam {
			stats.SpamCount++
		}
		c := decimal.NewFromFloat(r.ConfidencePercentage)
		total = total.Add(c)
		if c.LessThan(minConf) {
			minConf = c
		}
		if c.GreaterThan(maxConf) {
			maxConf = c
		}
	}

	n := decimal.NewFromInt(int64(len(records)))
	hundred := decimal.NewFromInt(100)

	stats.TotalPredictions = len(records)
	stats.HamCount = len(records) - stats.SpamCount
	stats.SpamPercentage = round2(decimal.NewFromInt(int64(stats.SpamCount)).Mul(hundred).Div(n))
	stats.HamPercentage = round2(decimal.NewFromInt(int64(stats.HamCount)).Mul(hundred).Div(n))
	stats.AverageConfidence = round2(total.Div(n))
	stats.MaxConfidence = round2(maxConf)
	stats.MinConfidence = round2(minConf)

	return stats
}

// ComputeMetadata derives store metadata from its records
func ComputeMetadata(records []*HistoryRecord, createdAt time.Time) *Metadata {
	meta := &Metadata{
		CreatedAt:   createdAt,
		LastUpdated: createdAt,
		Version:     HistoryFormatVersion,
	}

	stats := ComputeStatistics(records)
	meta.TotalPredictions = stats.TotalPredictions
	meta.TotalSpam = stats.SpamCount
	meta.TotalHam = stats.HamCount
	meta.AverageConfidence = stats.AverageConfidence

	for _, r := range records {
		if r.Timestamp.After(meta.LastUpdated) {
			meta.LastUpdated = r.Timestamp
		}
	}
	return meta
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
