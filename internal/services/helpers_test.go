package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// stubTokens is an in-memory auth.Provider.
type stubTokens struct {
	tokens auth.Tokens
	saved  []auth.Tokens
}

func (s *stubTokens) Tokens(_ context.Context) (auth.Tokens, error) {
	return s.tokens, nil
}

func (s *stubTokens) Save(_ context.Context, t auth.Tokens) error {
	s.tokens = t
	s.saved = append(s.saved, t)
	return nil
}

// fixedClock pins a component's now func in tests.
func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0).UTC() }
}
