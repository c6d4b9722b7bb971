package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

const byUUIDDir = "/dev/disk/by-uuid"

var foreignFSTypes = map[string]bool{
	"ext2": true, "ext3": true, "ext4": true,
	"ntfs": true, "ntfs3": true, "fuseblk": true,
	"vfat": true, "exfat": true, "hfsplus": true,
	"btrfs": true, "xfs": true,
}

// Prober discovers mounted data partitions.
type Prober struct {
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	uuidDir    string
}

func NewProber() *Prober {
	return &Prober{
		partitions: disk.PartitionsWithContext,
		uuidDir:    byUUIDDir,
	}
}

// Probe lists mounted block-device partitions with a data filesystem,
// leaving out the root and boot filesystems.
func (p *Prober) Probe(ctx context.Context) ([]Drive, error) {
	parts, err := p.partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	uuids, err := p.uuidsByDevice()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	drives := []Drive{}
	for _, part := range parts {
		if !strings.HasPrefix(part.Device, "/dev/") || !foreignFSTypes[part.Fstype] {
			continue
		}
		if part.Mountpoint == "/" || strings.HasPrefix(part.Mountpoint, "/boot") {
			continue
		}
		id := filepath.Base(part.Device)
		if seen[id] {
			continue
		}
		seen[id] = true
		drives = append(drives, Drive{
			ID:         id,
			UUID:       uuids[id],
			Mountpoint: part.Mountpoint,
			FSType:     part.Fstype,
		})
	}
	return drives, nil
}

// uuidsByDevice reads the udev by-uuid links into device name -> uuid.
func (p *Prober) uuidsByDevice() (map[string]string, error) {
	out := map[string]string{}
	entries, err := os.ReadDir(p.uuidDir)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.uuidDir, err)
	}
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join(p.uuidDir, e.Name()))
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(p.uuidDir, target)
		}
		out[filepath.Base(target)] = e.Name()
	}
	return out, nil
}
