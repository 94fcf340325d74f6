package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

func newTestService(t *testing.T, history HistoryRepository, observer PredictionObserver, opts ServiceOptions) *SpamFilterService {
	t.Helper()
	engine, _ := newTestEngine(t, &weightScorer{})
	s := NewSpamFilterService(engine, history, observer, zap.NewNop(), opts)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestClassifyValidation(t *testing.T) {
	s := newTestService(t, nil, nil, ServiceOptions{MinTextLength: 5})

	_, err := s.Classify(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = s.Classify(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = s.Classify(context.Background(), "  spa  ")
	assert.ErrorIs(t, err, ErrTextTooShort)

	result, err := s.Classify(context.Background(), "spam spam")
	require.NoError(t, err)
	assert.Equal(t, PredictionSpam, result.Prediction)
}

func TestClassifyRecordsHistory(t *testing.T) {
	history := &fakeHistory{}
	s := newTestService(t, history, nil, ServiceOptions{HistoryEnabled: true, TextPreviewLength: 8})
	assert.True(t, s.HistoryEnabled())

	result, err := s.Classify(context.Background(), "spam spam spam and more")
	require.NoError(t, err)

	require.Equal(t, 1, history.count())
	record := history.records[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), record.Timestamp)
	assert.Equal(t, "spam spa", record.EmailText)
	assert.Equal(t, result.Prediction, record.Prediction)
	assert.Equal(t, result.Label, record.Label)
	assert.Equal(t, result.ConfidencePercentage, record.ConfidencePercentage)
	assert.Equal(t, result.RawScore, record.RawScore)

	_, err = s.Classify(context.Background(), "ham")
	require.NoError(t, err)
	require.Equal(t, 2, history.count())
	assert.NotEqual(t, history.records[0].ID, history.records[1].ID)
}

func TestClassifyHistoryDisabled(t *testing.T) {
	history := &fakeHistory{}
	s := newTestService(t, history, nil, ServiceOptions{HistoryEnabled: false})
	assert.False(t, s.HistoryEnabled())

	_, err := s.Classify(context.Background(), "spam")
	require.NoError(t, err)
	assert.Zero(t, history.count())

	s = newTestService(t, nil, nil, ServiceOptions{HistoryEnabled: true})
	assert.False(t, s.HistoryEnabled())

	records, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClassifySurvivesHistoryFailure(t *testing.T) {
	history := &fakeHistory{addErr: errors.New("disk full")}
	s := newTestService(t, history, nil, ServiceOptions{HistoryEnabled: true})

	result, err := s.Classify(context.Background(), "spam")
	require.NoError(t, err)
	assert.Equal(t, PredictionSpam, result.Prediction)
}

func TestClassifyReportsPredictionFailure(t *testing.T) {
	observer := &countingObserver{}
	history := &fakeHistory{}
	s := newTestService(t, history, observer, ServiceOptions{HistoryEnabled: true})

	_, err := s.Classify(context.Background(), "boom")
	assert.ErrorIs(t, err, ErrPrediction)
	assert.Zero(t, history.count())

	_, err = s.Classify(context.Background(), "spam")
	require.NoError(t, err)

	assert.Equal(t, 1, observer.predictions)
	assert.Equal(t, 1, observer.failures)
}

func TestClassifyBatch(t *testing.T) {
	history := &fakeHistory{}
	observer := &countingObserver{}
	s := newTestService(t, history, observer, ServiceOptions{HistoryEnabled: true, MaxBatchSize: 5})
	assert.Equal(t, 5, s.MaxBatchSize())

	batch, err := s.ClassifyBatch(context.Background(), []string{"spam spam", "   ", "boom", "ham"})
	require.NoError(t, err)

	assert.Equal(t, 4, batch.Total)
	assert.Equal(t, 1, batch.SpamCount)
	assert.Equal(t, 3, batch.HamCount)
	require.Len(t, batch.Items, 4)

	for i, item := range batch.Items {
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, PredictionSpam, batch.Items[0].Result.Prediction)
	assert.ErrorIs(t, batch.Items[1].Err, ErrEmptyText)
	assert.ErrorIs(t, batch.Items[2].Err, ErrPrediction)
	assert.Equal(t, PredictionHam, batch.Items[3].Result.Prediction)

	assert.Equal(t, 2, history.count())
	assert.Equal(t, 2, observer.predictions)
	assert.Equal(t, 1, observer.failures)
}

func TestClassifyBatchSkipsBlankItemsBeforeTheEngine(t *testing.T) {
	engine, vectorizer := newTestEngine(t, &weightScorer{})
	s := NewSpamFilterService(engine, nil, nil, zap.NewNop(), ServiceOptions{})

	batch, err := s.ClassifyBatch(context.Background(), []string{"", "spam", "\t", "ham"})
	require.NoError(t, err)

	assert.Equal(t, []string{"spam", "ham"}, vectorizer.seen)
	assert.ErrorIs(t, batch.Items[0].Err, ErrEmptyText)
	assert.ErrorIs(t, batch.Items[2].Err, ErrEmptyText)
	assert.Equal(t, 1, batch.SpamCount)
	assert.Equal(t, 3, batch.HamCount)
}

func TestClassifyBatchSize(t *testing.T) {
	s := newTestService(t, nil, nil, ServiceOptions{MaxBatchSize: 2})

	_, err := s.ClassifyBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBatchSize)

	_, err = s.ClassifyBatch(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrBatchSize)

	batch, err := s.ClassifyBatch(context.Background(), []string{"spam", "ham"})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Total)
}

func TestServiceDefaults(t *testing.T) {
	s := newTestService(t, nil, nil, ServiceOptions{})
	assert.Equal(t, 100, s.MaxBatchSize())
	assert.Equal(t, 200, s.textPreviewLength)
}

func TestAnalyzeEmail(t *testing.T) {
	history := &fakeHistory{}
	s := newTestService(t, history, nil, ServiceOptions{
		HistoryEnabled:     true,
		WhitelistedDomains: []string{"trusted.example"},
	})

	verdict, err := s.AnalyzeEmail(context.Background(), &Email{
		From:    "Boss <boss@trusted.example>",
		Subject: "spam",
		Body:    "spam spam",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Whitelisted)
	assert.False(t, verdict.IsSpam)
	assert.Nil(t, verdict.Result)
	assert.Zero(t, history.count())

	verdict, err = s.AnalyzeEmail(context.Background(), &Email{
		From:    "promo@deals.example",
		Subject: "spam spam offer",
		Body:    "ham",
	})
	require.NoError(t, err)
	assert.False(t, verdict.Whitelisted)
	assert.True(t, verdict.IsSpam)
	require.NotNil(t, verdict.Result)
	assert.Equal(t, fixedNow, verdict.AnalyzedAt)
	assert.Equal(t, 1, history.count())
	assert.Equal(t, "spam spam offer\nham", history.records[0].EmailText)

	_, err = s.AnalyzeEmail(context.Background(), &Email{From: "x@y.example", Body: "boom"})
	assert.ErrorIs(t, err, ErrPrediction)
}

func TestEmailText(t *testing.T) {
	assert.Equal(t, "body", (&Email{Body: "body"}).Text())
	assert.Equal(t, "subject\nbody", (&Email{Subject: "subject", Body: "body"}).Text())
}

func TestModelInfo(t *testing.T) {
	s := newTestService(t, nil, nil, ServiceOptions{ModelInfo: ModelInfo{ModelType: "Linear SVM", Accuracy: 0.97, Features: 99}})
	info := s.ModelInfo()
	assert.Equal(t, "Linear SVM", info.ModelType)
	assert.Equal(t, 2, info.Features)
	assert.Equal(t, 0.97, info.Accuracy)
}

func TestHistoryQueries(t *testing.T) {
	history := &fakeHistory{createdAt: fixedNow.Add(-time.Hour)}
	s := newTestService(t, history, nil, ServiceOptions{HistoryEnabled: true})

	for _, text := range []string{"spam", "ham", "spam spam"} {
		_, err := s.Classify(context.Background(), text)
		require.NoError(t, err)
	}

	records, err := s.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ham", records[0].EmailText)

	records, err = s.HistoryRange(context.Background(), fixedNow.Add(-time.Minute), fixedNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	meta, err := s.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, meta.TotalPredictions)
	assert.Equal(t, 2, meta.TotalSpam)
	assert.Equal(t, history.createdAt, meta.CreatedAt)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), meta.LastUpdated)

	require.NoError(t, s.ClearHistory(context.Background()))
	stats, err := s.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPredictions)
}

func TestHistoryListFailure(t *testing.T) {
	s := newTestService(t, &fakeHistory{listErr: errors.New("db down")}, nil, ServiceOptions{HistoryEnabled: true})

	_, err := s.History(context.Background(), 0)
	assert.ErrorContains(t, err, "failed to list predictions: db down")

	_, err = s.Statistics(context.Background())
	assert.Error(t, err)

	err = s.ExportCSV(context.Background(), &bytes.Buffer{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoHistory)
}

func TestExport(t *testing.T) {
	history := &fakeHistory{}
	s := newTestService(t, history, nil, ServiceOptions{HistoryEnabled: true})

	var buf bytes.Buffer
	assert.ErrorIs(t, s.ExportCSV(context.Background(), &buf), ErrNoHistory)
	assert.ErrorIs(t, s.ExportJSON(context.Background(), &buf), ErrNoHistory)
	assert.Zero(t, buf.Len())

	_, err := s.Classify(context.Background(), "spam")
	require.NoError(t, err)
	_, err = s.Classify(context.Background(), "ham ham")
	require.NoError(t, err)

	require.NoError(t, s.ExportCSV(context.Background(), &buf))
	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Timestamp", "Prediction", "Confidence %", "Label"}, rows[0])
	assert.Equal(t, history.records[0].ID, rows[1][0])
	assert.Equal(t, "2024-03-01T12:30:00.123456Z", rows[1][1])
	assert.Equal(t, "Spam", rows[1][2])
	assert.Equal(t, "33.33", rows[1][3])
	assert.Equal(t, "1", rows[1][4])
	assert.Equal(t, []string{"Ham", "66.67", "0"}, rows[2][2:])

	buf.Reset()
	require.NoError(t, s.ExportJSON(context.Background(), &buf))
	var doc struct {
		Predictions []*HistoryRecord `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Predictions, 2)
	assert.Equal(t, history.records[1].ID, doc.Predictions[1].ID)
	assert.Equal(t, "ham ham", doc.Predictions[1].EmailText)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "héll", preview("héllo", 4))
}
