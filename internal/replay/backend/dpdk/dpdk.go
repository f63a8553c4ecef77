// Package dpdk is the "dpdk" output backend's interface stub. DPDK
// requires cgo bindings against a native DPDK install (EAL init, mbuf
// pools, port init) that no pure-Go library in this corpus provides;
// SPEC_FULL.md calls this out explicitly and scopes DPDK/NFB as
// interface-only. New always fails with backend.ErrNotSupported so a
// caller selecting "dpdk:" gets a clear startup error (§7) instead of a
// silent no-op.
package dpdk

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Options mirrors the "-o" plugin argument names a real DPDK backend
// would accept (§6), kept so the CLI's plugin-arg parser has somewhere
// to route them.
type Options struct {
	Interface  string
	QueueCount int
}

// New reports that the dpdk backend isn't available in this build.
func New(opts Options) (backend.Backend, error) {
	return nil, fmt.Errorf("dpdk: %w: no cgo DPDK bindings in this build", backend.ErrNotSupported)
}
