package drive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Drive maps an externally probed storage unit to its mountpoint. ID is the
// block device name (sdb1) or a volume UUID.
type Drive struct {
	ID         string `json:"id" db:"id" mapstructure:"id" validate:"required"`
	UUID       string `json:"uuid,omitempty" db:"uuid" mapstructure:"uuid"`
	Mountpoint string `json:"mountpoint" db:"mountpoint" mapstructure:"mountpoint" validate:"required"`
	FSType     string `json:"fsType,omitempty" db:"fs_type" mapstructure:"fs_type"`
}

var (
	ErrInvalidDrive   = errors.New("invalid drive")
	ErrDuplicateDrive = errors.New("duplicate drive")
)

func (d Drive) Validate() error {
	if d.ID == "" || strings.ContainsAny(d.ID, "/\\") {
		return fmt.Errorf("%w: bad id %q", ErrInvalidDrive, d.ID)
	}
	if !filepath.IsAbs(d.Mountpoint) {
		return fmt.Errorf("%w: mountpoint %q of %s is not absolute", ErrInvalidDrive, d.Mountpoint, d.ID)
	}
	return nil
}

// keys returns every identifier the drive answers to. RFC 4122 UUIDs are
// canonicalized so lookups ignore case and braces.
func (d Drive) keys() []string {
	keys := []string{normalizeKey(d.ID)}
	if d.UUID != "" && normalizeKey(d.UUID) != keys[0] {
		keys = append(keys, normalizeKey(d.UUID))
	}
	return keys
}

func normalizeKey(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// IsUUID reports whether id looks like a volume UUID rather than a device
// name.
func IsUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
