package upnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDIDLMetadataExtractsFields(t *testing.T) {
	didl := `&lt;DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/"&gt;` +
		`&lt;item&gt;&lt;dc:title&gt;Song&lt;/dc:title&gt;&lt;dc:creator&gt;Artist&lt;/dc:creator&gt;&lt;upnp:album&gt;Album&lt;/upnp:album&gt;` +
		`&lt;res protocolInfo="http-get:*:audio/mpeg:*"&gt;http://x/track.mp3&lt;/res&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;`

	got := ParseDIDLMetadata(didl)
	assert.Equal(t, "Song", got.Title)
	assert.Equal(t, "Artist", got.Artist)
	assert.Equal(t, "Album", got.Album)
	assert.Equal(t, "audio/mpeg", got.MIMEType)
}

func TestParseDIDLMetadataEmptyInput(t *testing.T) {
	assert.Equal(t, TrackMetadata{}, ParseDIDLMetadata(""))
}

func TestBuildDIDLMetadataRoundTrip(t *testing.T) {
	doc := BuildDIDLMetadata("1", "My Song", "My Artist", "My Album", "http://x/art.jpg", "http://x/track.flac", "audio/flac", 185)

	built := ParseDIDLMetadata(doc)
	assert.Equal(t, "My Song", built.Title)
	assert.Equal(t, "My Artist", built.Artist)
	assert.Equal(t, "My Album", built.Album)
	assert.Equal(t, "audio/flac", built.MIMEType)
}

func TestBuildDIDLMetadataEscapesSpecialCharacters(t *testing.T) {
	doc := BuildDIDLMetadata("1", `Rock & Roll <Live>`, "", "", "", "http://x/t.mp3", "audio/mpeg", 0)
	assert.NotContains(t, doc, "<Live>")
	assert.Contains(t, doc, "&lt;Live&gt;")
}

func TestFormatAndParseClockRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 60, 61, 3599, 3600, 3661, 86399} {
		clock := formatClock(secs)
		assert.Equal(t, secs, parseClock(clock), "round-tripping %q", clock)
	}
}
