//go:build !windows

package ssdp

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePort marks the receive socket SO_REUSEADDR+SO_REUSEPORT before bind,
// so a restarted advertiser rebinds 1900 immediately and renderd can
// coexist with other SSDP stacks on the same host.
func reusePort(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
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
		serr = unix.SetsockoptInet4Addr(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_IF, addr)
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
			mreq := &unix.IPMreq{Multiaddr: g}
			copy(mreq.Interface[:], addr.To4())
			if e := unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); e == nil {
				joined = true
			}
		}
		if !joined {
			// No per-interface join succeeded (e.g. a single-homed container);
			// fall back to the default-route interface.
			mreq := &unix.IPMreq{Multiaddr: g}
			if serr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); serr != nil {
				return
			}
		}
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, 0)
	})
	if err != nil {
		return err
	}
	return serr
}
