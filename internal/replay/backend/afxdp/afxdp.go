// Package afxdp is the "xdp" output backend's interface stub. A real
// AF_XDP backend needs a UMEM/XSK ring wrapper (§4.12); no such package
// ships in this corpus the way gopacket/afpacket covers PF_PACKET v2, so
// this is kept interface-only alongside dpdk/nfb rather than
// hand-rolling raw XDP socket setup untested against no real NIC driver.
// New always fails with backend.ErrNotSupported.
package afxdp

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Options mirrors the "-o" plugin argument names a real AF_XDP backend
// would accept (§6: "ifc", "queueCount", "umemSize", "xskQueueSize",
// "zeroCopy", "nativeMode").
type Options struct {
	Interface    string
	QueueCount   int
	UmemSize     int
	XskQueueSize int
	ZeroCopy     bool
	NativeMode   bool
}

// New reports that the AF_XDP backend isn't available in this build.
func New(opts Options) (backend.Backend, error) {
	return nil, fmt.Errorf("afxdp: %w: no AF_XDP socket bindings in this build", backend.ErrNotSupported)
}
