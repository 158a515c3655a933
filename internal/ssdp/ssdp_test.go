package ssdp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHeaderFindsCaseInsensitiveHeader(t *testing.T) {
	msg := "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nst: upnp:rootdevice\r\nMAN: \"ssdp:discover\"\r\n\r\n"
	assert.Equal(t, "upnp:rootdevice", extractHeader(msg, "ST"))
	assert.Equal(t, `"ssdp:discover"`, extractHeader(msg, "MAN"))
}

func TestExtractHeaderMissing(t *testing.T) {
	msg := "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\n\r\n"
	assert.Empty(t, extractHeader(msg, "ST"))
}

func TestContains(t *testing.T) {
	list := []string{"a", "b", "c"}
	assert.True(t, contains(list, "b"))
	assert.False(t, contains(list, "z"))
}

func TestUSNForRootUUIDVsServiceType(t *testing.T) {
	s := &Server{adv: Advertiser{UUID: "uuid:1234"}}
	assert.Equal(t, "uuid:1234", s.usn("uuid:1234"))
	assert.Equal(t, "uuid:1234::urn:schemas-upnp-org:service:AVTransport:1",
		s.usn("urn:schemas-upnp-org:service:AVTransport:1"))
}

func TestParseMXClampsAndDefaults(t *testing.T) {
	assert.Equal(t, defaultMX, parseMX(""))
	assert.Equal(t, defaultMX, parseMX("abc"))
	assert.Equal(t, defaultMX, parseMX("0"))
	assert.Equal(t, 3, parseMX("3"))
	assert.Equal(t, 5, parseMX("120"))
}

func TestLocalIPOnSubnetOfReturnsEmptyForNilOrUnreachable(t *testing.T) {
	assert.Empty(t, localIPOnSubnetOf(nil))
	// TEST-NET-3, guaranteed not to match any real local interface.
	assert.Empty(t, localIPOnSubnetOf(net.ParseIP("203.0.113.5")))
}

func TestDeviceURLForFallsBackWhenNoSubnetMatches(t *testing.T) {
	s := &Server{adv: Advertiser{
		LocalIP:  func() string { return "192.0.2.10" },
		HTTPPort: 8200,
	}}
	assert.Equal(t, "http://192.0.2.10:8200/description.xml", s.deviceURLFor(net.ParseIP("203.0.113.5")))
}
