package upnp

import (
	"fmt"
	"html"
	"strings"
)

// TrackMetadata is the subset of DIDL-Lite fields renderd cares about when a
// control point hands it a CurrentURIMetaData blob via SetAVTransportURI.
type TrackMetadata struct {
	Title    string
	Artist   string
	Album    string
	AlbumArt string
	MIMEType string
}

// ParseDIDLMetadata extracts track info from a DIDL-Lite XML fragment.
// Simple tag-scraping rather than a full DIDL-Lite parser, since control
// points only ever send the handful of dc:/upnp: elements this renderer
// displays.
func ParseDIDLMetadata(metadata string) TrackMetadata {
	var t TrackMetadata
	metadata = html.UnescapeString(metadata)

	t.Title = scrapeTag(metadata, "dc:title")
	t.Artist = scrapeTag(metadata, "dc:creator")
	t.Album = scrapeTag(metadata, "upnp:album")
	t.AlbumArt = scrapeTag(metadata, "upnp:albumArtURI")

	if start := strings.Index(metadata, "protocolInfo=\""); start != -1 {
		start += len("protocolInfo=\"")
		if end := strings.Index(metadata[start:], "\""); end != -1 {
			// protocolInfo is "http-get:*:<mime>:*"
			fields := strings.Split(metadata[start:start+end], ":")
			if len(fields) >= 3 {
				t.MIMEType = fields[2]
			}
		}
	}
	return t
}

func scrapeTag(body, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(body, open)
	if start == -1 {
		return ""
	}
	start += len(open)
	end := strings.Index(body[start:], close)
	if end == -1 {
		return ""
	}
	return body[start : start+end]
}

// BuildDIDLMetadata constructs a minimal DIDL-Lite document for a track.
// durationSecs 0 omits the attribute.
func BuildDIDLMetadata(id, title, artist, album, albumArt, streamURI, mimeType string, durationSecs int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">`)
	fmt.Fprintf(&b, `<item id="%s" parentID="0" restricted="1">`, html.EscapeString(id))
	fmt.Fprintf(&b, `<dc:title>%s</dc:title>`, html.EscapeString(title))
	if artist != "" {
		fmt.Fprintf(&b, `<dc:creator>%s</dc:creator>`, html.EscapeString(artist))
	}
	if album != "" {
		fmt.Fprintf(&b, `<upnp:album>%s</upnp:album>`, html.EscapeString(album))
	}
	if albumArt != "" {
		fmt.Fprintf(&b, `<upnp:albumArtURI>%s</upnp:albumArtURI>`, html.EscapeString(albumArt))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var durationAttr string
	if durationSecs > 0 {
		durationAttr = fmt.Sprintf(" duration=\"%s\"", formatClock(durationSecs))
	}
	fmt.Fprintf(&b, `<res protocolInfo="http-get:*:%s:*"%s>%s</res>`, mimeType, durationAttr, html.EscapeString(streamURI))
	fmt.Fprint(&b, `<upnp:class>object.item.audioItem.musicTrack</upnp:class>`)
	fmt.Fprint(&b, `</item></DIDL-Lite>`)
	return b.String()
}
