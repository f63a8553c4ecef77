// Package plugin parses the replay CLI's "-o" argument
// ("pluginName:key=v,key=v,...", §6 / §8 scenario 6) and dispatches it to
// the named output backend, grounded on
// original_source/tools/ft-replay/src/pluginFactory.cpp's name→factory
// table.
package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CESNET/ft-generator/internal/replay/backend"
	"github.com/CESNET/ft-generator/internal/replay/backend/afpacket"
	"github.com/CESNET/ft-generator/internal/replay/backend/afxdp"
	"github.com/CESNET/ft-generator/internal/replay/backend/dpdk"
	"github.com/CESNET/ft-generator/internal/replay/backend/nfb"
	"github.com/CESNET/ft-generator/internal/replay/backend/pcapfile"
	"github.com/CESNET/ft-generator/internal/replay/backend/raw"
)

// args is the parsed "key=v" map from one plugin argument string.
type args map[string]string

func (a args) str(key string) string {
	return a[key]
}

func (a args) int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("plugin: %s: %w", key, err)
	}
	return n, nil
}

func (a args) boolean(key string) bool {
	v := strings.ToLower(a[key])
	return v == "1" || v == "true" || v == "yes"
}

// Parse splits "pluginName:key=v,key=v,..." into a name and its args.
func Parse(spec string) (string, args, error) {
	name, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return "", nil, fmt.Errorf("plugin: %q: missing ':' separating plugin name from args", spec)
	}

	a := args{}
	if rest != "" {
		for _, pair := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return "", nil, fmt.Errorf("plugin: %q: malformed argument %q", spec, pair)
			}
			a[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return name, a, nil
}

// Open parses spec and constructs the named backend (§6: "packet" (AF_PACKET),
// "xdp", "dpdk", "nfb", "raw", "pcapFile").
func Open(spec string) (backend.Backend, error) {
	name, a, err := Parse(spec)
	if err != nil {
		return nil, err
	}

	switch name {
	case "packet":
		return openAFPacket(a)
	case "raw":
		return openRaw(a)
	case "pcapFile":
		return openPcapFile(a)
	case "xdp":
		return openXDP(a)
	case "dpdk":
		return dpdk.New(dpdk.Options{Interface: a.str("ifc"), QueueCount: mustInt(a, "queueCount", 1)})
	case "nfb":
		return nfb.New(nfb.Options{Device: a.str("dev"), QueueCount: mustInt(a, "queueCount", 1)})
	default:
		return nil, fmt.Errorf("plugin: unknown plugin %q", name)
	}
}

func mustInt(a args, key string, def int) int {
	n, err := a.int(key, def)
	if err != nil {
		return def
	}
	return n
}

func openAFPacket(a args) (backend.Backend, error) {
	queueCount, err := a.int("queueCount", 1)
	if err != nil {
		return nil, err
	}
	burstSize, err := a.int("burstSize", 64)
	if err != nil {
		return nil, err
	}
	blockSize, err := a.int("blockSize", 1<<20)
	if err != nil {
		return nil, err
	}
	packetSize, err := a.int("packetSize", 2048)
	if err != nil {
		return nil, err
	}
	frameCount, err := a.int("frameCount", 512)
	if err != nil {
		return nil, err
	}
	return afpacket.New(afpacket.Options{
		Interface:         a.str("ifc"),
		QueueCount:        queueCount,
		BurstSize:         burstSize,
		BlockSize:         blockSize,
		PacketSize:        packetSize,
		FrameCount:        frameCount,
		QdiscBypass:       a.boolean("qdiskBypass"),
		TolerateFrameLoss: a.boolean("packetLoss"),
	})
}

func openRaw(a args) (backend.Backend, error) {
	queueCount, err := a.int("queueCount", 1)
	if err != nil {
		return nil, err
	}
	burstSize, err := a.int("burstSize", 64)
	if err != nil {
		return nil, err
	}
	return raw.New(raw.Options{Interface: a.str("ifc"), QueueCount: queueCount, BurstSize: burstSize})
}

func openPcapFile(a args) (backend.Backend, error) {
	queueCount, err := a.int("queueCount", 1)
	if err != nil {
		return nil, err
	}
	mtu, err := a.int("mtu", 0)
	if err != nil {
		return nil, err
	}
	return pcapfile.New(pcapfile.Options{File: a.str("file"), QueueCount: queueCount, MTU: mtu})
}

func openXDP(a args) (backend.Backend, error) {
	queueCount, err := a.int("queueCount", 1)
	if err != nil {
		return nil, err
	}
	umemSize, err := a.int("umemSize", 0)
	if err != nil {
		return nil, err
	}
	xskQueueSize, err := a.int("xskQueueSize", 0)
	if err != nil {
		return nil, err
	}
	return afxdp.New(afxdp.Options{
		Interface:    a.str("ifc"),
		QueueCount:   queueCount,
		UmemSize:     umemSize,
		XskQueueSize: xskQueueSize,
		ZeroCopy:     a.boolean("zeroCopy"),
		NativeMode:   a.boolean("nativeMode"),
	})
}
