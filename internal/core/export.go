package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeader is the column layout of the CSV export
var csvHeader = []string{"ID", "Timestamp", "Prediction", "Confidence %", "Label"}

// ExportCSV writes the whole history as CSV
func (s *SpamFilterService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.History(ctx, 0)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoHistory
	}
	return WriteCSV(w, records)
}

// ExportJSON writes the whole history as an indented {"predictions": [...]} document
func (s *SpamFilterService) ExportJSON(ctx context.Context, w io.Writer) error {
	records, err := s.History(ctx, 0)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoHistory
	}
	return WriteJSON(w, records)
}

// WriteCSV encodes records with two-decimal confidence percentages
func WriteCSV(w io.Writer, records []*HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Prediction,
			strconv.FormatFloat(r.ConfidencePercentage, 'f', 2, 64),
			strconv.Itoa(r.Label),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON encodes records under a "predictions" key
func WriteJSON(w io.Writer, records []*HistoryRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"predictions": records}); err != nil {
		return fmt.Errorf("failed to encode predictions: %w", err)
	}
	return nil
}
