package ftmeter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"golang.org/x/sys/unix"
)

// PcapSink writes generated packets to a pcap file, grounded on
// bridge/capture.go's pcapgo.NewWriter/WriteFileHeader/WritePacket usage.
type PcapSink struct {
	f *os.File
	w *pcapgo.Writer
}

// NewPcapSink creates fname and writes the pcap file header. Unless
// skipDiskspaceCheck is set, it first rejects a destination filesystem with
// less than minFreeBytes free, mirroring the original pcapwriter's statfs
// preflight.
func NewPcapSink(fname string, skipDiskspaceCheck bool) (*PcapSink, error) {
	if !skipDiskspaceCheck {
		if err := checkDiskspace(fname); err != nil {
			return nil, err
		}
	}

	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("ftmeter: create %s: %w", fname, err)
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("ftmeter: write pcap header: %w", err)
	}

	return &PcapSink{f: f, w: w}, nil
}

const minFreeBytes = 64 * 1024 * 1024

func checkDiskspace(fname string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(fname), &st); err != nil {
		return fmt.Errorf("ftmeter: statfs: %w", err)
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < minFreeBytes {
		return fmt.Errorf("ftmeter: only %d bytes free, refusing to write %s (use --no-diskspace-check to override)", free, fname)
	}
	return nil
}

// WritePacket appends one packet with the given capture metadata.
func (s *PcapSink) WritePacket(ci gopacket.CaptureInfo, data []byte) error {
	if err := s.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("ftmeter: write packet: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *PcapSink) Close() error {
	return s.f.Close()
}
