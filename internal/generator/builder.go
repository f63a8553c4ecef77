// Package generator wires the plan→build pipeline (internal/ftpkt/layer),
// the flow maker (internal/flowmaker) and the calendar
// (internal/calendar) into the end-to-end generator main loop described
// in spec §4.7.
package generator

import (
	"fmt"

	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt/layer"
	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

// Options are the resolved, already-unit-converted knobs a Builder needs
// out of the YAML config (§6), kept separate from genconfig.Config so the
// builder doesn't have to re-parse duration/percentage strings per flow.
type Options struct {
	Encapsulation []genconfig.EncapLayer

	FragProbabilityV4       float64
	MinPacketSizeToFragment uint64
	FragProbabilityV6       float64

	EnabledProtocols map[string]bool // "http", "dns", "tls"
	AlwaysTLSPorts   map[int]bool
	NeverTLSPorts    map[int]bool
	TLSOtherwiseProb float64

	// MaxInterpacketGap caps the gap tsplan's §4.3 timestamp solver
	// spreads between two consecutive packets of the same flow, in
	// nanoseconds. Nil means uncapped.
	MaxInterpacketGap *uint64
}

// Builder constructs a complete Flow's layer stack for one profile row and
// runs its plan phase, matching flowmaker.BuildFunc.
type Builder struct {
	opts Options
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build implements flowmaker.BuildFunc.
func (b *Builder) Build(row genconfig.ProfileRow, flowID uint64, srcIP, dstIP []byte, r *ftrand.Rand) (*flow.Flow, error) {
	f := flow.New(flowID, row.L3Proto, row.L4Proto, r)
	f.SrcIP, f.DstIP = srcIP, dstIP
	f.SrcPort, f.DstPort = row.SrcPort, row.DstPort
	f.FwdPackets, f.RevPackets = row.Packets, row.PacketsRev
	f.FwdBytes, f.RevBytes = row.Bytes, row.BytesRev
	f.TsFirst, f.TsLast = row.StartTime, row.EndTime
	f.SrcMAC = randomLocalMAC(r)
	f.DstMAC = randomLocalMAC(r)

	// Encapsulation is configured outermost-first (closest to Ethernet);
	// each layer needs to know the EtherType of whatever sits above it, so
	// walk the config in reverse to build bottom-to-top layers, then push
	// them onto the flow in the order Ethernet expects.
	var encapLayers []flow.Layer
	nextType := l3EtherType(row.L3Proto)
	for i := len(b.opts.Encapsulation) - 1; i >= 0; i-- {
		e := b.opts.Encapsulation[i]
		if r.Float64() >= e.Probability {
			continue
		}
		switch e.Type {
		case "vlan":
			l := layer.NewVlan(uint16(e.ID), nextType)
			encapLayers = append([]flow.Layer{l}, encapLayers...)
			nextType = layers.EthernetTypeDot1Q
		case "mpls":
			innerIPv6 := row.L3Proto == flow.L3IPv6
			l := layer.NewMpls(uint32(e.Label), innerIPv6)
			encapLayers = append([]flow.Layer{l}, encapLayers...)
			nextType = layers.EthernetTypeMPLSUnicast
		}
	}

	f.Push(layer.NewEthernet(nextType))
	for _, l := range encapLayers {
		f.Push(l)
	}

	l4proto, err := l3Proto(row.L4Proto)
	if err != nil {
		return nil, err
	}

	switch row.L3Proto {
	case flow.L3IPv4:
		f.Push(layer.NewIPv4(l4proto, b.opts.FragProbabilityV4, b.opts.MinPacketSizeToFragment))
	case flow.L3IPv6:
		f.Push(layer.NewIPv6(l4proto, b.opts.FragProbabilityV6, b.opts.MinPacketSizeToFragment))
	default:
		return nil, fmt.Errorf("generator: unknown L3 proto %v", row.L3Proto)
	}

	switch row.L4Proto {
	case flow.L4TCP:
		f.Push(layer.NewTCP(row.SrcPort, row.DstPort))
	case flow.L4UDP:
		f.Push(layer.NewUDP(row.SrcPort, row.DstPort))
	case flow.L4ICMP, flow.L4ICMPv6:
		// Half of ICMP flows are request/reply echo pairs, half are
		// background noise (dest-unreachable, time-exceeded, ...); the
		// profile CSV doesn't distinguish the two, so the choice is the
		// flow's own to make.
		echo := r.Float64() < 0.5
		switch {
		case row.L3Proto == flow.L3IPv6 && echo:
			f.Push(layer.NewICMPv6Echo())
		case row.L3Proto == flow.L3IPv6:
			f.Push(layer.NewICMPv6Random())
		case echo:
			f.Push(layer.NewICMPEcho())
		default:
			f.Push(layer.NewICMPRandom())
		}
	default:
		return nil, fmt.Errorf("generator: unknown L4 proto %v", row.L4Proto)
	}

	b.pushApplicationLayer(f, row)

	f.RunPlanPhase()
	if err := f.FinishPlanPackets(b.opts.MaxInterpacketGap); err != nil {
		return nil, fmt.Errorf("generator: finish plan for flow %d: %w", flowID, err)
	}
	return f, nil
}

// pushApplicationLayer picks the top-of-stack payload layer: HTTP or DNS
// when the flow's ports and enabled_protocols say so, else plain random
// payload. TLS just swaps the payload layer's type for labelling (§4.4
// tlsmarker.go); it does not change the bytes produced.
func (b *Builder) pushApplicationLayer(f *flow.Flow, row genconfig.ProfileRow) {
	if row.L4Proto != flow.L4TCP && row.L4Proto != flow.L4UDP {
		f.Push(layer.NewPayload())
		return
	}

	useHTTP := b.opts.EnabledProtocols["http"] && (row.DstPort == 80 || row.SrcPort == 80)
	useDNS := b.opts.EnabledProtocols["dns"] && (row.DstPort == 53 || row.SrcPort == 53)

	switch {
	case useHTTP:
		f.Push(layer.NewHTTP())
	case useDNS:
		f.Push(layer.NewDNS())
	case b.wantsTLS(f, row):
		f.Push(layer.NewTLSMarker())
	default:
		f.Push(layer.NewPayload())
	}
}

func (b *Builder) wantsTLS(f *flow.Flow, row genconfig.ProfileRow) bool {
	if !b.opts.EnabledProtocols["tls"] {
		return false
	}
	if b.opts.NeverTLSPorts[int(row.DstPort)] || b.opts.NeverTLSPorts[int(row.SrcPort)] {
		return false
	}
	if b.opts.AlwaysTLSPorts[int(row.DstPort)] || b.opts.AlwaysTLSPorts[int(row.SrcPort)] {
		return true
	}
	return f.Rand.Float64() < b.opts.TLSOtherwiseProb
}

func l3EtherType(l3 flow.L3Proto) layers.EthernetType {
	if l3 == flow.L3IPv6 {
		return layers.EthernetTypeIPv6
	}
	return layers.EthernetTypeIPv4
}

func l3Proto(l4 flow.L4Proto) (layers.IPProtocol, error) {
	switch l4 {
	case flow.L4TCP:
		return layers.IPProtocolTCP, nil
	case flow.L4UDP:
		return layers.IPProtocolUDP, nil
	case flow.L4ICMP, flow.L4ICMPRand:
		return layers.IPProtocolICMPv4, nil
	case flow.L4ICMPv6:
		return layers.IPProtocolICMPv6, nil
	default:
		return 0, fmt.Errorf("generator: unknown L4 proto %v", l4)
	}
}

// randomLocalMAC draws a locally-administered, unicast MAC (U/L bit set,
// group bit clear) for flows that have no MAC range configured.
func randomLocalMAC(r *ftrand.Rand) []byte {
	mac := r.Bytes(6)
	mac[0] = (mac[0] &^ 0x01) | 0x02
	return mac
}
