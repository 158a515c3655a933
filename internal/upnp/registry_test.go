package upnp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedVolumeRangeMatchesSCPD(t *testing.T) {
	spec, ok := serviceSpecs[RenderingControl].vars["Volume"]
	require.True(t, ok)
	require.NotNil(t, spec.Min)
	require.NotNil(t, spec.Max)
	assert.Equal(t, 0, *spec.Min)
	assert.Equal(t, 100, *spec.Max)
	assert.True(t, spec.SendEvents)
}

func TestParsedActionsCarryArgumentLists(t *testing.T) {
	caps, ok := serviceSpecs[AVTransport].actions["GetDeviceCapabilities"]
	require.True(t, ok)
	require.Len(t, caps.In, 1)
	assert.Equal(t, "A_ARG_TYPE_InstanceID", caps.In[0].RelatedStateVariable)
	require.Len(t, caps.Out, 3)
	assert.Equal(t, "PlayMedia", caps.Out[0].Name)
	assert.Equal(t, "PossiblePlaybackStorageMedia", caps.Out[0].RelatedStateVariable)

	seek, ok := serviceSpecs[AVTransport].actions["Seek"]
	require.True(t, ok)
	assert.Len(t, seek.In, 3)
	assert.Empty(t, seek.Out)
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, validateRange(RenderingControl, "Volume", 0))
	assert.NoError(t, validateRange(RenderingControl, "Volume", 100))
	assert.Error(t, validateRange(RenderingControl, "Volume", 101))
	assert.Error(t, validateRange(RenderingControl, "Volume", -1))
	// No declared range means anything goes.
	assert.NoError(t, validateRange(AVTransport, "TransportState", 12345))
}

func TestValidateAllowedSeekModes(t *testing.T) {
	assert.NoError(t, validateAllowed(AVTransport, "A_ARG_TYPE_SeekMode", "REL_TIME"))
	assert.NoError(t, validateAllowed(AVTransport, "A_ARG_TYPE_SeekMode", "ABS_TIME"))
	assert.Error(t, validateAllowed(AVTransport, "A_ARG_TYPE_SeekMode", "TRACK_NR"))
	// Variables without an allowedValueList accept anything.
	assert.NoError(t, validateAllowed(AVTransport, "CurrentTrackURI", "whatever"))
}

func TestEverySCPDParses(t *testing.T) {
	for svc, specs := range serviceSpecs {
		assert.NotEmpty(t, specs.vars, "service %s must declare state variables", svc)
		assert.NotEmpty(t, specs.actions, "service %s must declare actions", svc)
	}
}

func TestGenericHandlerEchoesDeclaredOutputs(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")

	// GetDeviceCapabilities has no bespoke handler; the generic path must
	// synthesize its response from the declared output arguments.
	resp, fault := d.Dispatch(context.Background(), AVTransport, "GetDeviceCapabilities",
		[]byte(`<u:GetDeviceCapabilities><InstanceID>0</InstanceID></u:GetDeviceCapabilities>`))
	require.Nil(t, fault)
	assert.Contains(t, string(resp), "<GetDeviceCapabilitiesResponse>")
	assert.Contains(t, string(resp), "<PlayMedia>NETWORK,HDD</PlayMedia>")
	assert.Contains(t, string(resp), "<RecMedia>NOT_IMPLEMENTED</RecMedia>")
	assert.Contains(t, string(resp), "<RecQualityModes>NOT_IMPLEMENTED</RecQualityModes>")
}

func TestGenericHandlerReflectsStateChanges(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	d.AVTransport.Set("CurrentPlayMode", "REPEAT_ALL")

	resp, fault := d.Dispatch(context.Background(), AVTransport, "GetTransportSettings",
		[]byte(`<u:GetTransportSettings><InstanceID>0</InstanceID></u:GetTransportSettings>`))
	require.Nil(t, fault)
	assert.Contains(t, string(resp), "<PlayMode>REPEAT_ALL</PlayMode>")
	assert.Contains(t, string(resp), "<RecQualityMode>NOT_IMPLEMENTED</RecQualityMode>")
}

func TestGenericHandlerRejectsUndeclaredAction(t *testing.T) {
	d := NewDevice("uuid:test", "renderd")
	_, fault := d.Dispatch(context.Background(), AVTransport, "NotDeclaredAnywhere", nil)
	require.NotNil(t, fault)
	assert.Equal(t, ErrInvalidAction, fault.Code)
}

func TestParseArgValues(t *testing.T) {
	values := parseArgValues([]byte(`<u:Seek><InstanceID>0</InstanceID><Unit>REL_TIME</Unit><Target>0:01:30</Target></u:Seek>`))
	assert.Equal(t, map[string]string{"InstanceID": "0", "Unit": "REL_TIME", "Target": "0:01:30"}, values)
	assert.Nil(t, parseArgValues(nil))
}
