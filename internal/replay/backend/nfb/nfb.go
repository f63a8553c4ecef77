// Package nfb is the "nfb" output backend's interface stub, for CESNET's
// own NFB/FPGA cards (§4.12: device-tree feature probing, super-packet
// mode, firmware rate limiter). It requires the proprietary libnfb
// bindings, unavailable in this corpus; SPEC_FULL.md scopes NFB as
// interface-only alongside DPDK. New always fails with
// backend.ErrNotSupported.
package nfb

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Options mirrors the "-o" plugin argument names a real NFB backend
// would accept (§6).
type Options struct {
	Device     string
	QueueCount int
}

// New reports that the nfb backend isn't available in this build.
func New(opts Options) (backend.Backend, error) {
	return nil, fmt.Errorf("nfb: %w: no libnfb bindings in this build", backend.ErrNotSupported)
}
