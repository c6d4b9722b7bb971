package drive

import (
	"log/slog"

	"github.com/rjeczalik/notify"
)

// watch reports link changes in the udev by-uuid directory, which appear
// whenever a partition is attached or detached. When the directory cannot be
// watched the returned channel is nil and callers fall back to polling.
func (p *Prober) watch() (<-chan notify.EventInfo, func()) {
	events := make(chan notify.EventInfo, 16)
	if err := notify.Watch(p.uuidDir, events, notify.Create, notify.Remove); err != nil {
		slog.Warn("drive watcher disabled", "dir", p.uuidDir, "error", err)
		return nil, func() {}
	}
	slog.Debug("drive watcher start", "dir", p.uuidDir)
	return events, func() {
		notify.Stop(events)
		slog.Debug("drive watcher stop", "dir", p.uuidDir)
	}
}
