//go:build !linux

package localsocket

import "net"

// peerPID is only implemented on linux.
func peerPID(net.Conn) (int32, bool) {
	return 0, false
}
