package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a full batch of long emails fits comfortably
const maxBodyBytes = 10 << 20

type predictRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Emails []string `json:"emails"`
}

type batchItemResponse struct {
	Index int `json:"index"`
	*core.PredictionResult
	Error string `json:"error,omitempty"`
}

type batchResponse struct {
	Total     int                 `json:"total"`
	SpamCount int                 `json:"spam_count"`
	HamCount  int                 `json:"ham_count"`
	Results   []batchItemResponse `json:"results"`
}

type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, StatusCode: status})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// inputError reports whether err is caused by the caller's input
func inputError(err error) bool {
	return errors.Is(err, core.ErrEmptyText) ||
		errors.Is(err, core.ErrTextTooShort) ||
		errors.Is(err, core.ErrBatchSize)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"POST /predict":       "Classify a single email and save",
		"POST /predict-batch": "Classify multiple emails",
		"GET /model-info":     "Get model performance metrics",
		"GET /predictions":    "Get all saved predictions",
		"GET /statistics":     "Get aggregate statistics",
		"GET /export/csv":     "Download predictions as CSV",
		"GET /export/json":    "Download predictions as JSON",
		"DELETE /predictions": "Clear all predictions",
		"GET /health":         "Health check",
	}
	if s.metrics != nil {
		endpoints["GET "+s.opts.MetricsPath] = "Prometheus metrics"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   serviceName,
		"version":   serviceVersion,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"model_loaded":   true,
		"database_ready": s.service.HistoryEnabled(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Classify(r.Context(), req.Text)
	if err != nil {
		if inputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Prediction error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.service.ClassifyBatch(r.Context(), req.Emails)
	if err != nil {
		if inputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Batch prediction error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Batch prediction failed: "+err.Error())
		return
	}

	resp := batchResponse{
		Total:     batch.Total,
		SpamCount: batch.SpamCount,
		HamCount:  batch.HamCount,
		Results:   make([]batchItemResponse, 0, len(batch.Items)),
	}
	for _, item := range batch.Items {
		out := batchItemResponse{Index: item.Index, PredictionResult: item.Result}
		switch {
		case errors.Is(item.Err, core.ErrEmptyText):
			out.Error = "Empty email text"
		case item.Err != nil:
			out.Error = "Prediction failed: " + item.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ModelInfo())
}

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if n < 0 {
			writeError(w, http.StatusBadRequest, "limit must not be negative")
			return
		}
		limit = n
	}

	var records []*core.HistoryRecord
	var err error
	if query.Has("start") || query.Has("end") {
		start, end, rangeErr := parseRange(query.Get("start"), query.Get("end"))
		if rangeErr != nil {
			writeError(w, http.StatusBadRequest, rangeErr.Error())
			return
		}
		records, err = s.service.HistoryRange(r.Context(), start, end)
		if err == nil && limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}
	} else {
		records, err = s.service.History(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("Failed to retrieve predictions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve predictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":       len(records),
		"predictions": records,
	})
}

// parseRange reads RFC3339 bounds; a missing start is the zero time and a missing end is now
func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	var start time.Time
	end := time.Now().UTC()

	if rawStart != "" {
		t, err := time.Parse(time.RFC3339Nano, rawStart)
		if err != nil {
			return start, end, errors.New("start must be an RFC3339 timestamp")
		}
		start = t
	}
	if rawEnd != "" {
		t, err := time.Parse(time.RFC3339Nano, rawEnd)
		if err != nil {
			return start, end, errors.New("end must be an RFC3339 timestamp")
		}
		end = t
	}
	if end.Before(start) {
		return start, end, errors.New("end must not be before start")
	}
	return start, end, nil
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Statistics(r.Context())
	if err != nil {
		s.logger.Error("Failed to get statistics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}
	meta, err := s.service.Metadata(r.Context())
	if err != nil {
		s.logger.Error("Failed to get metadata", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statistics": stats,
		"metadata":   meta,
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportCSV(r.Context(), &buf); err != nil {
		s.exportError(w, "CSV", err)
		return
	}
	sendAttachment(w, "text/csv", "predictions.csv", buf.Bytes())
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportJSON(r.Context(), &buf); err != nil {
		s.exportError(w, "JSON", err)
		return
	}
	sendAttachment(w, "application/json", "predictions.json", buf.Bytes())
}

func (s *Server) exportError(w http.ResponseWriter, format string, err error) {
	if errors.Is(err, core.ErrNoHistory) {
		writeError(w, http.StatusBadRequest, "No predictions to export")
		return
	}
	s.logger.Error("Failed to export predictions", zap.String("format", format), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to export "+format)
}

func sendAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleClearPredictions(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(r.Context()); err != nil {
		s.logger.Error("Failed to clear predictions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to clear predictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "All predictions have been cleared",
		"status":  "success",
	})
}
