//go:build windows

package ssdp

import (
	"net"
	"syscall"

	"golang.org/x/sys/windows"
)

// reusePort marks the receive socket SO_REUSEADDR before bind (Windows has
// no SO_REUSEPORT; SO_REUSEADDR covers both roles there).
func reusePort(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// setMulticastInterface pins a send socket's multicast egress to the
// interface owning local, so each per-interface sender actually transmits
// from its own interface instead of the default route.
func setMulticastInterface(conn *net.UDPConn, local net.IP) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	err = raw.Control(func(fd uintptr) {
		var addr [4]byte
		copy(addr[:], local.To4())
		serr = windows.SetsockoptInet4Addr(windows.Handle(fd), windows.IPPROTO_IP, windows.IP_MULTICAST_IF, addr)
	})
	if err != nil {
		return err
	}
	return serr
}

// joinMulticastGroups subscribes the receive socket to the SSDP group on
// every active IPv4 interface and disables loopback of our own NOTIFYs.
func joinMulticastGroups(conn *net.UDPConn, group net.IP) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	err = raw.Control(func(fd uintptr) {
		var g [4]byte
		copy(g[:], group.To4())

		joined := false
		for _, addr := range activeIPv4Addrs() {
			mreq := &windows.IPMreq{Multiaddr: g}
			copy(mreq.Interface[:], addr.To4())
			if e := windows.SetsockoptIPMreq(windows.Handle(fd), windows.IPPROTO_IP, windows.IP_ADD_MEMBERSHIP, mreq); e == nil {
				joined = true
			}
		}
		if !joined {
			mreq := &windows.IPMreq{Multiaddr: g}
			if serr = windows.SetsockoptIPMreq(windows.Handle(fd), windows.IPPROTO_IP, windows.IP_ADD_MEMBERSHIP, mreq); serr != nil {
				return
			}
		}
		serr = windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_IP, windows.IP_MULTICAST_LOOP, 0)
	})
	if err != nil {
		return err
	}
	return serr
}
