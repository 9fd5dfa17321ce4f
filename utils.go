package jsongate

import (
	"net"
)

// fallbackPort is used when the kernel cannot hand out an ephemeral port
const fallbackPort = 15690

// findFreePort asks the kernel for an available TCP port
func findFreePort() int {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fallbackPort
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}
