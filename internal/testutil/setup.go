package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ulroy-ai/ulroy-go/internal/telemetry"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

// NewMockDB creates a pgxmock pool that is closed when the test ends.
func NewMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	t.Cleanup(func() {
		mockPool.Close()
	})

	return mockPool
}

// NewTestLogger returns the production logger setup writing to nowhere.
func NewTestLogger() *slog.Logger {
	return telemetry.NewLogger(io.Discard, true)
}
