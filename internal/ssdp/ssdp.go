// Package ssdp implements the SSDP discovery half of UPnP: answering
// M-SEARCH requests and periodically announcing ssdp:alive / ssdp:byebye
// NOTIFY messages for a MediaRenderer root device plus its
// AVTransport/RenderingControl/ConnectionManager services.
package ssdp

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/navidrome/renderd/log"
)

const (
	multicastAddr = "239.255.255.250:1900"
	ssdpAlive     = "ssdp:alive"
	ssdpByeBye    = "ssdp:byebye"
	ssdpAll       = "ssdp:all"
	cacheMaxAge   = 66
	defaultMX     = 1
)

// Advertiser carries what SSDP needs to describe the device: its identity,
// the bound HTTP port, the advertised service types and a local-IP lookup.
// The orchestrator fills it in from the device and the settings store.
type Advertiser struct {
	UUID          string
	FriendlyName  string
	ServerName    string
	HTTPPort      int
	LocalIP       func() string
	ServiceTypes  []string
	NotifyEvery   time.Duration
}

// Server answers M-SEARCH requests and periodically announces this
// device's presence over the SSDP multicast group.
type Server struct {
	adv            Advertiser
	conn           *net.UDPConn
	suppressByebye atomic.Bool
}

// SuppressByebye marks this server so its next shutdown (via ctx
// cancellation) skips the ssdp:byebye announce: an IP-change-triggered SSDP
// restart stays silent about the old LOCATION instead of announcing the
// device is leaving.
func (s *Server) SuppressByebye() {
	s.suppressByebye.Store(true)
}

func New(adv Advertiser) *Server {
	if adv.NotifyEvery <= 0 {
		adv.NotifyEvery = 3 * time.Second
	}
	return &Server{adv: adv}
}

// Run opens the multicast socket, announces ssdp:alive, and blocks serving
// M-SEARCH responses and periodic re-announcements until ctx is canceled,
// at which point it sends ssdp:byebye before returning.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{Control: reusePort}
	pc, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:1900")
	if err != nil {
		return fmt.Errorf("listening on SSDP multicast: %w", err)
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()
	if err := joinMulticastGroups(conn, net.IPv4(239, 255, 255, 250)); err != nil {
		return fmt.Errorf("joining SSDP multicast group: %w", err)
	}
	if err := conn.SetReadBuffer(65535); err != nil {
		log.Warn(ctx, "failed to size SSDP read buffer", err)
	}
	s.conn = conn

	s.announce(ctx, ssdpAlive)

	ticker := time.NewTicker(s.adv.NotifyEvery)
	defer ticker.Stop()

	go s.listen(ctx)

	for {
		select {
		case <-ctx.Done():
			if !s.suppressByebye.Load() {
				s.announce(context.Background(), ssdpByeBye)
			}
			return nil
		case <-ticker.C:
			s.announce(ctx, ssdpAlive)
		}
	}
}

func (s *Server) listen(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			continue
		}
		n, remoteAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Error(ctx, "error reading SSDP packet", err)
			continue
		}
		msg := string(buf[:n])
		if strings.HasPrefix(msg, "M-SEARCH") {
			s.handleMSearch(ctx, msg, remoteAddr)
		}
	}
}

func (s *Server) handleMSearch(ctx context.Context, msg string, remoteAddr *net.UDPAddr) {
	st := extractHeader(msg, "ST")
	if st == "" {
		return
	}

	var targets []string
	switch {
	case st == ssdpAll:
		targets = s.allServiceTypes()
	case st == "upnp:rootdevice":
		targets = []string{"upnp:rootdevice"}
	case st == deviceType:
		targets = []string{deviceType}
	case st == s.adv.UUID:
		targets = []string{s.adv.UUID}
	case contains(s.adv.ServiceTypes, st):
		targets = []string{st}
	default:
		return
	}

	mx := parseMX(extractHeader(msg, "MX"))
	log.Debug(ctx, "responding to M-SEARCH", "st", st, "from", remoteAddr.String(), "mx", mx)

	// Spread replies over 0..MX seconds so a multicast M-SEARCH from many
	// control points doesn't collide a flood of unicast replies at once.
	delay := time.Duration(rand.Intn(mx*1000+1)) * time.Millisecond
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		for _, target := range targets {
			s.respond(ctx, target, remoteAddr)
		}
	}()
}

// parseMX returns the requester's MX header as a positive integer of
// seconds, clamped to 1..5, falling back to defaultMX when absent or
// unparsable.
func parseMX(raw string) int {
	mx, err := strconv.Atoi(raw)
	if err != nil || mx < 1 {
		return defaultMX
	}
	if mx > 5 {
		return 5
	}
	return mx
}

func (s *Server) respond(ctx context.Context, st string, remoteAddr *net.UDPAddr) {
	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"DATE: %s\r\n"+
		"EXT:\r\n"+
		"LOCATION: %s\r\n"+
		"SERVER: %s\r\n"+
		"ST: %s\r\n"+
		"USN: %s\r\n"+
		"BOOTID.UPNP.ORG: 1\r\n"+
		"CONFIGID.UPNP.ORG: 1\r\n"+
		"\r\n",
		cacheMaxAge, time.Now().UTC().Format(time.RFC1123),
		s.deviceURLFor(remoteAddr.IP), s.serverString(), st, s.usn(st))

	// The unicast reply leaves from the interface whose subnet contains the
	// requester, matching the address the LOCATION header advertises.
	var laddr *net.UDPAddr
	if ip := localIPOnSubnetOf(remoteAddr.IP); ip != "" {
		laddr = &net.UDPAddr{IP: net.ParseIP(ip)}
	}
	conn, err := net.DialUDP("udp4", laddr, remoteAddr)
	if err != nil {
		log.Error(ctx, "failed to dial M-SEARCH response", err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(resp)); err != nil {
		log.Error(ctx, "failed to send M-SEARCH response", err)
	}
}

func (s *Server) announce(ctx context.Context, nts string) {
	for _, target := range s.allServiceTypes() {
		s.notify(ctx, target, nts)
	}
}

// notify sends one NOTIFY datagram per local IPv4 interface, each from a
// socket bound to that interface with its multicast egress pinned there,
// and each advertising that interface's own address in LOCATION. A
// multi-homed host is reachable on every subnet it sits on, not just the
// default route's.
func (s *Server) notify(ctx context.Context, nt, nts string) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		log.Error(ctx, "failed to resolve multicast address for NOTIFY", err)
		return
	}

	locals := activeIPv4Addrs()
	if len(locals) == 0 {
		s.notifyFrom(ctx, nil, addr, nt, nts, s.deviceURL())
		return
	}
	for _, local := range locals {
		s.notifyFrom(ctx, local, addr, nt, nts, s.deviceURLAt(local.String()))
	}
}

func (s *Server) notifyFrom(ctx context.Context, local net.IP, dst *net.UDPAddr, nt, nts, location string) {
	var msg string
	if nts == ssdpByeBye {
		msg = fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"NT: %s\r\n"+
			"NTS: %s\r\n"+
			"USN: %s\r\n"+
			"BOOTID.UPNP.ORG: 1\r\n"+
			"CONFIGID.UPNP.ORG: 1\r\n"+
			"\r\n", multicastAddr, nt, nts, s.usn(nt))
	} else {
		msg = fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"CACHE-CONTROL: max-age=%d\r\n"+
			"LOCATION: %s\r\n"+
			"NT: %s\r\n"+
			"NTS: %s\r\n"+
			"SERVER: %s\r\n"+
			"USN: %s\r\n"+
			"BOOTID.UPNP.ORG: 1\r\n"+
			"CONFIGID.UPNP.ORG: 1\r\n"+
			"\r\n", multicastAddr, cacheMaxAge, location, nt, nts, s.serverString(), s.usn(nt))
	}

	var laddr *net.UDPAddr
	if local != nil {
		laddr = &net.UDPAddr{IP: local}
	}
	conn, err := net.DialUDP("udp4", laddr, dst)
	if err != nil {
		log.Error(ctx, "failed to dial for NOTIFY", err, "interface", local)
		return
	}
	defer conn.Close()
	if local != nil {
		if err := setMulticastInterface(conn, local); err != nil {
			log.Debug(ctx, "failed to pin multicast interface", "err", err, "interface", local)
		}
	}
	// Each announcement goes out twice; SSDP is UDP and a single lost packet
	// would hide the device until the next tick.
	for i := 0; i < 2; i++ {
		if _, err := conn.Write([]byte(msg)); err != nil {
			log.Error(ctx, "failed to send NOTIFY", err, "interface", local)
		}
	}
}

func (s *Server) allServiceTypes() []string {
	all := []string{"upnp:rootdevice", s.adv.UUID, deviceType}
	return append(all, s.adv.ServiceTypes...)
}

func (s *Server) usn(st string) string {
	if st == s.adv.UUID {
		return s.adv.UUID
	}
	return fmt.Sprintf("%s::%s", s.adv.UUID, st)
}

func (s *Server) deviceURL() string {
	return s.deviceURLAt(s.adv.LocalIP())
}

// deviceURLAt builds the LOCATION header advertising the description
// document on one specific local address.
func (s *Server) deviceURLAt(ip string) string {
	return fmt.Sprintf("http://%s:%d/description.xml", ip, s.adv.HTTPPort)
}

// deviceURLFor builds the LOCATION header for a unicast M-SEARCH reply,
// preferring the address of whichever local interface shares a subnet with
// the requester (a masked compare) over the single default-route address
// deviceURL falls back to.
func (s *Server) deviceURLFor(requester net.IP) string {
	if ip := localIPOnSubnetOf(requester); ip != "" {
		return s.deviceURLAt(ip)
	}
	return s.deviceURL()
}

// localIPOnSubnetOf scans local interface addresses for one whose network
// contains requester, so a host with several interfaces (e.g. Ethernet and
// Wi-Fi on different subnets) replies with an address the requester can
// actually reach.
func localIPOnSubnetOf(requester net.IP) string {
	if requester == nil {
		return ""
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipNet.IP.To4() == nil {
				continue
			}
			if ipNet.Contains(requester) {
				return ipNet.IP.String()
			}
		}
	}
	return ""
}

// activeIPv4Addrs lists the IPv4 address of every up, non-loopback
// interface, used to join the multicast group per interface.
func activeIPv4Addrs() []net.IP {
	var out []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			out = append(out, ipNet.IP.To4())
		}
	}
	return out
}

func (s *Server) serverString() string {
	return fmt.Sprintf("Linux/1.0 UPnP/1.0 %s/1.0", s.adv.ServerName)
}

const deviceType = "urn:schemas-upnp-org:device:MediaRenderer:1"

func extractHeader(msg, header string) string {
	prefix := header + ":"
	for _, line := range strings.Split(msg, "\r\n") {
		if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
