package upnp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAVTransportURIResetsPositionAndLoadsPlayer(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	player := &fakePlayer{}
	d.SetPlayer(player)

	d.AVTransport.Set("RelativeTimePosition", "00:05:00")
	d.AVTransport.Set("AbsoluteTimePosition", "00:05:00")

	body := []byte(`<u:SetAVTransportURI><InstanceID>0</InstanceID><CurrentURI>http://example.com/track.mp3</CurrentURI><CurrentURIMetaData></CurrentURIMetaData></u:SetAVTransportURI>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "SetAVTransportURI", body)
	require.Nil(t, fault)

	assert.Equal(t, "00:00:00", d.AVTransport.Get("RelativeTimePosition"))
	assert.Equal(t, "00:00:00", d.AVTransport.Get("AbsoluteTimePosition"))
	assert.Equal(t, "TRANSITIONING", d.AVTransport.Get("TransportState"))
	assert.Equal(t, "http://example.com/track.mp3", player.lastURI)
}

func TestSetAVTransportURISetsTrackTitleFromMetadata(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	d.SetPlayer(&fakePlayer{})

	body := []byte(`<u:SetAVTransportURI><InstanceID>0</InstanceID>` +
		`<CurrentURI>http://example.com/a.mp4</CurrentURI>` +
		`<CurrentURIMetaData>&lt;DIDL-Lite&gt;&lt;item&gt;&lt;dc:title&gt;Demo&lt;/dc:title&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;</CurrentURIMetaData>` +
		`</u:SetAVTransportURI>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "SetAVTransportURI", body)
	require.Nil(t, fault)

	assert.Equal(t, "Demo", d.AVTransport.Get("CurrentTrackTitle"))
	assert.True(t, d.AVTransport.IsObserved("CurrentTrackTitle"),
		"CurrentTrackTitle must be evented so NOTIFY carries it")
}

func TestSetAVTransportURIRejectsEmptyURI(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	body := []byte(`<u:SetAVTransportURI><InstanceID>0</InstanceID><CurrentURI></CurrentURI><CurrentURIMetaData></CurrentURIMetaData></u:SetAVTransportURI>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "SetAVTransportURI", body)
	require.NotNil(t, fault)
	assert.Equal(t, ErrInvalidArgs, fault.Code)
}

func TestStopInvokesPlayer(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	stopped := false
	d.SetPlayer(&stoppingPlayer{onStop: func() { stopped = true }})

	_, fault := d.Dispatch(context.Background(), AVTransport, "Stop", nil)
	require.Nil(t, fault)
	assert.True(t, stopped)
}

func TestSeekRejectsUnsupportedUnit(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	body := []byte(`<u:Seek><InstanceID>0</InstanceID><Unit>TRACK_NR</Unit><Target>1</Target></u:Seek>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "Seek", body)
	require.NotNil(t, fault)
	assert.Equal(t, ErrIllegalSeekTarget, fault.Code)
}

func TestSeekAcceptsRelTime(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	d.SetPlayer(&fakePlayer{})
	body := []byte(`<u:Seek><InstanceID>0</InstanceID><Unit>REL_TIME</Unit><Target>00:01:30</Target></u:Seek>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "Seek", body)
	assert.Nil(t, fault)
}

func TestSetNextAVTransportURICommitsQueuedURI(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	d.SetPlayer(&fakePlayer{})
	body := []byte(`<u:SetNextAVTransportURI><InstanceID>0</InstanceID><NextURI>http://example.com/b.mp3</NextURI><NextURIMetaData></NextURIMetaData></u:SetNextAVTransportURI>`)
	_, fault := d.Dispatch(context.Background(), AVTransport, "SetNextAVTransportURI", body)
	require.Nil(t, fault)
	assert.Equal(t, "http://example.com/b.mp3", d.AVTransport.Get("NextAVTransportURI"))
}

type stoppingPlayer struct {
	fakePlayer
	onStop func()
}

func (p *stoppingPlayer) Stop(ctx context.Context) error {
	p.onStop()
	return nil
}
