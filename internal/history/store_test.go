package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, retain int) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), retain)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "RenderingControl", "state-change", "Volume", map[string]string{"Volume": "50"}))
	require.NoError(t, s.Record(ctx, "AVTransport", "state-change", "TransportState", map[string]string{"TransportState": "PLAYING"}))

	events, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, "AVTransport", events[0].Service)
	assert.Equal(t, "RenderingControl", events[1].Service)
	assert.JSONEq(t, `{"TransportState":"PLAYING"}`, events[0].Detail)
}

func TestListDefaultsLimitWhenNonPositive(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, "AVTransport", "state-change", "x", nil))
	}
	events, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestVacuumSucceeds(t *testing.T) {
	s := openTestStore(t, 0)
	assert.NoError(t, s.Vacuum(context.Background()))
}
