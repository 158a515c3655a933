package upnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTableSetOnlyReportsRealChanges(t *testing.T) {
	tbl := NewStateTable([]string{"Volume"})

	assert.True(t, tbl.Set("Volume", "50"), "first Set must report a change")
	assert.False(t, tbl.Set("Volume", "50"), "identical value must report no change")
	assert.True(t, tbl.Set("Volume", "60"), "new value must report a change")
	assert.Equal(t, "60", tbl.Get("Volume"))
}

func TestStateTableSetManyReturnsOnlyObservedChanges(t *testing.T) {
	tbl := NewStateTable([]string{"TransportState"})
	tbl.Set("TransportState", "STOPPED")
	tbl.Set("CurrentTrack", "0")

	changed := tbl.SetMany(map[string]string{
		"TransportState": "PLAYING", // observed, changes
		"CurrentTrack":   "1",       // not observed, changes
		"Unrelated":      "x",       // not observed, new
	})

	assert.Equal(t, []string{"TransportState"}, changed)
	assert.Equal(t, "1", tbl.Get("CurrentTrack"), "unobserved updates must still apply")
}

func TestStateTableIsObserved(t *testing.T) {
	tbl := NewStateTable([]string{"Volume", "Mute"})
	assert.True(t, tbl.IsObserved("Volume"))
	assert.False(t, tbl.IsObserved("TransportState"))
}

func TestNewDeviceSeedsDefaults(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")

	assert.Equal(t, "STOPPED", d.AVTransport.Get("TransportState"))
	assert.Equal(t, "50", d.RenderingControl.Get("Volume"))
	assert.Equal(t, "Output", d.ConnectionManager.Get("A_ARG_TYPE_Direction"))
	assert.Equal(t, "0", d.ConnectionManager.Get("CurrentConnectionIDs"))
	assert.Equal(t, "2147483647", d.AVTransport.Get("RelativeCounterPosition"))
}

func TestPositionVariablesAreObserved(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	require.True(t, d.AVTransport.IsObserved("RelativeTimePosition"))
	require.True(t, d.AVTransport.IsObserved("AbsoluteTimePosition"))
}
