package nfs

import (
	"os"
	"syscall"
)

// renameChecked refuses to rename over an existing entry. The check and the
// rename are not atomic.
func renameChecked(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: syscall.EEXIST}
	} else if !isNotExist(err) {
		return err
	}
	return os.Rename(oldPath, newPath)
}
