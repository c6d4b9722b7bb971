package nfs

import (
	"os"
	"path/filepath"
	"strings"
)

// DriveLookup maps a drive identifier to its mountpoint. Implementations
// serve an immutable snapshot refreshed out of band.
type DriveLookup interface {
	Mountpoint(id string) (string, bool)
}

// PathResolver turns (drive, relative path) pairs into absolute paths.
type PathResolver struct {
	drives DriveLookup
}

func NewPathResolver(drives DriveLookup) *PathResolver {
	return &PathResolver{drives: drives}
}

// ResolveID returns the mountpoint of a drive.
func (r *PathResolver) ResolveID(id string) (string, error) {
	mp, ok := r.drives.Mountpoint(id)
	if !ok {
		return "", errDriveNotFound("resolve", id)
	}
	return mp, nil
}

// ResolvePath validates rel and joins it under the drive's mountpoint. The
// empty path resolves to the mountpoint itself. Validation runs before the
// drive lookup so a malformed path fails the same way for every drive.
//
// Every existing ancestor of the target below the mountpoint must be a real
// directory: a symlink among them fails with EISSYMLINK/EUNSUPPORTED. The
// last component is left to the caller, which lstats it.
func (r *PathResolver) ResolvePath(id, rel string) (string, error) {
	segs, ok := splitRelPath(rel)
	if !ok {
		return "", errInvalidPath("resolve", rel)
	}
	mp, err := r.ResolveID(id)
	if err != nil {
		return "", err
	}
	if err := checkAncestors(mp, segs); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{mp}, segs...)...), nil
}

// ResolvePaths validates both paths before resolving either.
func (r *PathResolver) ResolvePaths(id, oldRel, newRel string) (string, string, error) {
	oldSegs, ok := splitRelPath(oldRel)
	if !ok {
		return "", "", errInvalidPath("resolve", oldRel)
	}
	newSegs, ok := splitRelPath(newRel)
	if !ok {
		return "", "", errInvalidPath("resolve", newRel)
	}
	mp, err := r.ResolveID(id)
	if err != nil {
		return "", "", err
	}
	if err := checkAncestors(mp, oldSegs); err != nil {
		return "", "", err
	}
	if err := checkAncestors(mp, newSegs); err != nil {
		return "", "", err
	}
	oldPath := filepath.Join(append([]string{mp}, oldSegs...)...)
	newPath := filepath.Join(append([]string{mp}, newSegs...)...)
	return oldPath, newPath, nil
}

// checkAncestors lstats each ancestor of segs below mp. The walk stops at the
// first missing or non-directory component; the syscall on the target then
// reports ENOENT or ENOTDIR.
func checkAncestors(mp string, segs []string) error {
	cur := mp
	for i := 0; i < len(segs)-1; i++ {
		cur = filepath.Join(cur, segs[i])
		info, err := os.Lstat(cur)
		if err != nil {
			return nil
		}
		switch KindOf(info) {
		case KindDirectory:
			continue
		case KindSymlink:
			return errUnsupported("resolve", strings.Join(segs[:i+1], "/"), info)
		}
		return nil
	}
	return nil
}
