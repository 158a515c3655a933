package upnp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	noopPlayer
	lastVolume int
	lastMute   bool
	lastURI    string
}

func (f *fakePlayer) SetVolume(ctx context.Context, v int) error { f.lastVolume = v; return nil }
func (f *fakePlayer) SetMute(ctx context.Context, m bool) error  { f.lastMute = m; return nil }
func (f *fakePlayer) SetAVTransportURI(ctx context.Context, uri, meta string) error {
	f.lastURI = uri
	return nil
}

type recordingPublisher struct {
	calls []publishCall
}

type publishCall struct {
	service ServiceName
	changed map[string]string
}

func (r *recordingPublisher) Publish(service ServiceName, changed map[string]string, snapshot map[string]string) {
	r.calls = append(r.calls, publishCall{service: service, changed: changed})
}

func setVolumeBody(vol string) []byte {
	return []byte(`<u:SetVolume><InstanceID>0</InstanceID><Channel>Master</Channel><DesiredVolume>` + vol + `</DesiredVolume></u:SetVolume>`)
}

func TestSetVolumeBoundaries(t *testing.T) {
	cases := []struct {
		vol       string
		wantFault bool
	}{
		{"0", false},
		{"100", false},
		{"101", true},
		{"-1", true},
	}
	for _, c := range cases {
		t.Run("DesiredVolume="+c.vol, func(t *testing.T) {
			d := NewDevice("uuid:test", "renderd")
			d.SetPlayer(&fakePlayer{})

			_, fault := d.Dispatch(context.Background(), RenderingControl, "SetVolume", setVolumeBody(c.vol))
			if c.wantFault {
				require.NotNil(t, fault)
				assert.Equal(t, ErrArgumentValueOOR, fault.Code)
				return
			}
			assert.Nil(t, fault)
		})
	}
}

func TestSetVolumeCommitsAndPushesToPlayer(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	player := &fakePlayer{}
	pub := &recordingPublisher{}
	d.SetPlayer(player)
	d.SetEventPublisher(pub)

	_, fault := d.Dispatch(context.Background(), RenderingControl, "SetVolume", setVolumeBody("77"))
	require.Nil(t, fault)

	assert.Equal(t, 77, player.lastVolume)
	assert.Equal(t, "77", d.RenderingControl.Get("Volume"))
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "77", pub.calls[0].changed["Volume"])
}

func TestSetMuteAcceptsBooleanVariants(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	player := &fakePlayer{}
	d.SetPlayer(player)

	body := []byte(`<u:SetMute><InstanceID>0</InstanceID><Channel>Master</Channel><DesiredMute>true</DesiredMute></u:SetMute>`)
	_, fault := d.Dispatch(context.Background(), RenderingControl, "SetMute", body)
	require.Nil(t, fault)

	assert.True(t, player.lastMute)
	assert.Equal(t, "1", d.RenderingControl.Get("Mute"))
}

func TestGetVolumeReflectsState(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	resp, fault := d.Dispatch(context.Background(), RenderingControl, "GetVolume", nil)
	require.Nil(t, fault)
	assert.Contains(t, string(resp), "<CurrentVolume>50</CurrentVolume>")
}
