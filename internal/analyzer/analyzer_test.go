package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) AppendSignal(context.Context, model.Signal) error {
	return errors.New("disk full")
}

func offlineGateway() *collector.Gateway {
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &collector.Gateway{Now: func() time.Time { return fixed }}
}

func TestAnalyzeRecordsHistory(t *testing.T) {
	st := store.NewMemoryStore()
	a := New(offlineGateway(), st)

	res, err := a.Analyze(context.Background(), " btcusdt ", "4h")
	require.NoError(t, err)
	assert.Equal(t, "synthetic", res.Provenance)
	assert.Equal(t, "BTCUSDT", res.Signal.Symbol)
	assert.Equal(t, "4h", res.Signal.Timeframe)
	assert.Equal(t, res.Snapshot.Price(), res.Signal.EntryPrice)
	assert.GreaterOrEqual(t, res.Range.Position, 0.0)
	assert.LessOrEqual(t, res.Range.Position, 1.0)
	assert.Greater(t, res.Range.High, res.Range.Low)

	hist, err := st.RecentSignals(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, res.Signal.ID, hist[0].ID)
}

func TestAnalyzeHistoryFailureIsNotFatal(t *testing.T) {
	a := New(offlineGateway(), failingSink{})
	_, err := a.Analyze(context.Background(), "ETHUSDT", "1h")
	assert.NoError(t, err)
}

func TestAnalyzeFailures(t *testing.T) {
	a := New(offlineGateway(), nil)

	_, err := a.Analyze(context.Background(), "  ", "1h")
	assert.ErrorIs(t, err, ErrAnalysisFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, "BTCUSDT", "1h")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}
