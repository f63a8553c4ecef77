// Package linkinfo introspects a NIC's MTU, TX queue count and NUMA node
// over rtnetlink, grounded on github.com/mdlayher/netlink (a generic
// netlink socket wrapper; the teacher's internal/bridge ioctls OVS
// bridges over a unix socket in the same low-level style). Backends use
// this before opening their queues to size rings and warn on CPU/NUMA
// mismatch (§4.12, §9).
package linkinfo

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

const (
	rtmGetLink = 18

	iflaMTU          = 4
	iflaNumTxQueues  = 31
)

// Info is what a backend needs to know about a physical interface before
// opening queues on it.
type Info struct {
	Ifindex    int
	MTU        int
	NumQueues  int
	NumaNode   int // -1 if unknown
}

// Query looks up iface over rtnetlink (MTU, queue count) and sysfs (NUMA
// node, since rtnetlink doesn't carry it).
func Query(iface string) (Info, error) {
	ifi, err := netIfaceIndex(iface)
	if err != nil {
		return Info{}, err
	}

	conn, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return Info{}, fmt.Errorf("linkinfo: dial rtnetlink: %w", err)
	}
	defer conn.Close()

	req := netlink.Message{
		Header: netlink.Header{
			Type:  rtmGetLink,
			Flags: netlink.Request | netlink.Acknowledge,
		},
		Data: ifinfomsg(ifi),
	}

	resp, err := conn.Execute(req)
	if err != nil {
		return Info{}, fmt.Errorf("linkinfo: RTM_GETLINK %s: %w", iface, err)
	}

	info := Info{Ifindex: ifi, MTU: 1500, NumQueues: 1, NumaNode: numaNode(iface)}
	for _, m := range resp {
		if len(m.Data) < 16 {
			continue
		}
		parseAttrs(m.Data[16:], &info)
	}
	return info, nil
}

func netIfaceIndex(name string) (int, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("linkinfo: lookup interface %s: %w", name, err)
	}
	return iface.Index, nil
}

func parseAttrs(b []byte, info *Info) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return
	}
	for ad.Next() {
		switch ad.Type() {
		case iflaMTU:
			info.MTU = int(ad.Uint32())
		case iflaNumTxQueues:
			info.NumQueues = int(ad.Uint32())
		}
	}
}

// ifinfomsg builds the 16-byte ifinfomsg request payload for RTM_GETLINK,
// matching struct ifinfomsg from linux/rtnetlink.h.
func ifinfomsg(ifindex int) []byte {
	b := make([]byte, 16)
	b[0] = unix.AF_UNSPEC
	binary.LittleEndian.PutUint32(b[4:8], uint32(ifindex))
	return b
}

// numaNode reads /sys/class/net/<iface>/device/numa_node, returning -1 if
// absent (virtual interfaces) or unreadable.
func numaNode(iface string) int {
	data, err := os.ReadFile("/sys/class/net/" + iface + "/device/numa_node")
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
