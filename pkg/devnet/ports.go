package devnet

import (
	"net"

	"github.com/pkg/errors"
)

// PortMode is the externally-facing query protocol a chain variant
// exposes, mirroring the teacher's infra/apps/cored Ports struct
// (spec.md §4.5).
type PortMode string

const (
	ModeLCP     PortMode = "lcp"     // HTTP/LCD REST gateway
	ModeGRPCWeb PortMode = "grpcWeb" // grpc-web proxy
)

// defaultPorts maps a PortMode to the port a fresh container should
// listen on absent an explicit override, grounded on
// infra/apps/cored/ports.go's DefaultPorts table.
var defaultPorts = map[PortMode]int{
	ModeLCP:     1317,
	ModeGRPCWeb: 9091,
}

// DefaultPort returns mode's conventional port, or 0 for an unknown mode.
func DefaultPort(mode PortMode) int {
	return defaultPorts[mode]
}

// variantPorts maps a chain variant string (as reported in a devnet
// image's version, e.g. "scrt_1.2") to the query protocol that variant's
// node exposes. Early secretnetwork releases only spoke the LCD gateway;
// 1.3/1.4 switched to grpc-web before reverting to LCD from 1.5 onward.
var variantPorts = map[string]PortMode{
	"scrt_1.2": ModeLCP,
	"scrt_1.3": ModeGRPCWeb,
	"scrt_1.4": ModeGRPCWeb,
	"scrt_1.5": ModeLCP,
	"scrt_1.6": ModeLCP,
	"scrt_1.7": ModeLCP,
	"scrt_1.8": ModeLCP,
}

// PortsForVariant resolves the (PortMode, default port) pair a devnet
// image's chain variant exposes. ok is false for a variant this table
// doesn't recognize; Load then falls back to ModeLCP with a warning.
func PortsForVariant(variant string) (mode PortMode, port int, ok bool) {
	mode, ok = variantPorts[variant]
	if !ok {
		return "", 0, false
	}
	return mode, DefaultPort(mode), true
}

// FreePort asks the OS for an unused TCP port in the ephemeral range,
// used when spawn is given no explicit port (spec.md §4.5 "fresh if
// none"). The listener is closed immediately; the returned port is not
// reserved, but the race window is negligible for a local devnet.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, errors.Wrap(err, "devnet: allocating free port")
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("devnet: listener address is not TCP")
	}
	return addr.Port, nil
}
