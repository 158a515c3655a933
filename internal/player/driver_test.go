package player

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadSchedulesPendingReloadWhilePlaying(t *testing.T) {
	d := New(Config{}, nil)
	d.playing = true
	d.currentURI = "http://example.com/a.mp3"
	d.lastPosition = 42

	d.Reload(context.Background())

	require.NotNil(t, d.pendingReload)
	assert.Equal(t, "http://example.com/a.mp3", d.pendingReload.uri)
	assert.Equal(t, 42, d.pendingReload.startSeconds)
}

func TestReloadIsNoOpWhenNotPlaying(t *testing.T) {
	d := New(Config{}, nil)
	d.playing = false
	d.currentURI = "http://example.com/a.mp3"

	d.Reload(context.Background())

	assert.Nil(t, d.pendingReload)
}

func TestSetNextAVTransportURIQueuesForEndOfTrack(t *testing.T) {
	d := New(Config{}, nil)
	require.NoError(t, d.SetNextAVTransportURI(context.Background(), "http://example.com/b.mp3", ""))
	assert.Equal(t, "http://example.com/b.mp3", d.nextURI)
}
