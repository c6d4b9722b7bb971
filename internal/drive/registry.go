package drive

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
)

type snapshot struct {
	drives      []Drive
	mountpoints map[string]string
}

// Registry holds the current drive snapshot. Readers never block; Replace
// swaps in a whole new snapshot.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{mountpoints: map[string]string{}})
	return r
}

// Replace validates drives and installs them as the new snapshot.
func (r *Registry) Replace(drives []Drive) error {
	s := &snapshot{
		drives:      slices.Clone(drives),
		mountpoints: make(map[string]string, len(drives)*2),
	}
	for _, d := range drives {
		if err := d.Validate(); err != nil {
			return err
		}
		for _, key := range d.keys() {
			if _, dup := s.mountpoints[key]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateDrive, key)
			}
			s.mountpoints[key] = d.Mountpoint
		}
	}
	r.snap.Store(s)
	slog.Info("drive snapshot replaced", "drives", len(drives))
	return nil
}

// List returns a copy of the current snapshot.
func (r *Registry) List() []Drive {
	return slices.Clone(r.snap.Load().drives)
}

// Mountpoint looks a drive up by device name or UUID.
func (r *Registry) Mountpoint(id string) (string, bool) {
	mp, ok := r.snap.Load().mountpoints[normalizeKey(id)]
	return mp, ok
}

// Equal reports whether drives matches the current snapshot, ignoring order.
func (r *Registry) Equal(drives []Drive) bool {
	cur := r.snap.Load().drives
	if len(cur) != len(drives) {
		return false
	}
	a, b := slices.Clone(cur), slices.Clone(drives)
	slices.SortFunc(a, compareDrive)
	slices.SortFunc(b, compareDrive)
	return slices.Equal(a, b)
}

func compareDrive(a, b Drive) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
