package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/coastguard/svm-spam-filter/internal/adapters/artifact"
	"github.com/coastguard/svm-spam-filter/internal/adapters/history"
	"github.com/coastguard/svm-spam-filter/internal/adapters/sklearn"
	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// message joins header and body lines with CRLF
func message(lines ...string) string {
	return strings.Join(lines, "\r\n")
}

func newTestService(t *testing.T, whitelist ...string) (*core.SpamFilterService, *history.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()

	a, err := sklearn.Load(context.Background(), artifact.NewFileSource("../sklearn/testdata"),
		"spam_vectorizer.json", "spam_model_LinearSVM.json", logger)
	require.NoError(t, err)
	engine, err := core.NewPredictionEngine(a.Vectorizer, a.Model, logger)
	require.NoError(t, err)

	store := history.NewMemoryStore(logger, history.Retention{})
	t.Cleanup(store.Stop)

	service := core.NewSpamFilterService(engine, store, nil, logger, core.ServiceOptions{
		HistoryEnabled:     true,
		MinTextLength:      1,
		WhitelistedDomains: whitelist,
	})
	return service, store
}
