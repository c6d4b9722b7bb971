package nfs

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// Mkdir creates target. On an existing-target conflict the policy decides:
// skip returns the existing entry, replace deletes it and retries once,
// rename creates a sibling-unique name instead.
func Mkdir(target string, policy Policy) (*EntryDescriptor, Resolved, error) {
	const op = "mkdir"

	err := os.Mkdir(target, dirPerm)
	if err == nil {
		return statDescriptor(op, target, Resolved{})
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, Resolved{}, wrapOS(op, target, err)
	}

	info, err := os.Lstat(target)
	if err != nil {
		return nil, Resolved{}, wrapOS(op, target, err)
	}

	res, resolved := policy.Resolve(info.IsDir())
	logResolution(op, target, res, resolved)

	switch res {
	case ResolveSkip:
		return skipped(op, target, info, resolved)
	case ResolveReplace:
		if err := os.RemoveAll(target); err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		if err := os.Mkdir(target, dirPerm); err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		return statDescriptor(op, target, resolved)
	case ResolveRename:
		renamed, err := renameTarget(target, false)
		if err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		if err := os.Mkdir(renamed, dirPerm); err != nil {
			return nil, Resolved{}, wrapOS(op, renamed, err)
		}
		return statDescriptor(op, renamed, resolved)
	}
	return nil, Resolved{}, errConflict(op, target, info)
}

// CreateFile exclusively creates target and returns it open for writing.
// Copying content into the handle is the caller's job. On skip the returned
// file is nil and nothing must be written.
func CreateFile(target string, policy Policy) (*os.File, Resolved, error) {
	const op = "createFile"

	f, err := createExclusive(target)
	if err == nil {
		return f, Resolved{}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, Resolved{}, wrapOS(op, target, err)
	}

	info, err := os.Lstat(target)
	if err != nil {
		return nil, Resolved{}, wrapOS(op, target, err)
	}

	res, resolved := policy.Resolve(info.Mode().IsRegular())
	logResolution(op, target, res, resolved)

	switch res {
	case ResolveSkip:
		return nil, resolved, nil
	case ResolveReplace:
		if err := os.RemoveAll(target); err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		f, err := createExclusive(target)
		if err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		return f, resolved, nil
	case ResolveRename:
		renamed, err := renameTarget(target, true)
		if err != nil {
			return nil, Resolved{}, wrapOS(op, target, err)
		}
		f, err := createExclusive(renamed)
		if err != nil {
			return nil, Resolved{}, wrapOS(op, renamed, err)
		}
		return f, resolved, nil
	}
	return nil, Resolved{}, errConflict(op, target, info)
}

// MoveFile renames oldPath to newPath. The policy is consulted only when
// newPath already exists; same means the existing entry is a regular file.
func MoveFile(oldPath, newPath string, policy Policy) (*EntryDescriptor, Resolved, error) {
	return move("moveFile", oldPath, newPath, policy, true, func(info fs.FileInfo) bool {
		return info.Mode().IsRegular()
	})
}

// MoveDir renames oldPath to newPath; same means the existing entry is a
// directory. The returned descriptor is named after the final target.
func MoveDir(oldPath, newPath string, policy Policy) (*EntryDescriptor, Resolved, error) {
	return move("moveDir", oldPath, newPath, policy, false, func(info fs.FileInfo) bool {
		return info.IsDir()
	})
}

func move(op, oldPath, newPath string, policy Policy, file bool, isSame func(fs.FileInfo) bool) (*EntryDescriptor, Resolved, error) {
	if err := checkOverlap(op, oldPath, newPath); err != nil {
		return nil, Resolved{}, err
	}
	parent := filepath.Dir(newPath)
	pinfo, err := os.Lstat(parent)
	if err != nil && !isNotExist(err) {
		return nil, Resolved{}, wrapOS(op, parent, err)
	}
	if err != nil || !pinfo.IsDir() {
		return nil, Resolved{}, errCode(op, parent, CodeENOTDIR, "destination parent is not a directory")
	}

	info, err := os.Lstat(newPath)
	if isNotExist(err) {
		err = renameNoReplace(oldPath, newPath)
		if err == nil {
			return statDescriptor(op, newPath, Resolved{})
		}
		if !isExist(err) {
			return nil, Resolved{}, wrapOS(op, oldPath, err)
		}
		// lost a race against a concurrent creator; resolve it like any conflict
		info, err = os.Lstat(newPath)
	}
	if err != nil {
		return nil, Resolved{}, wrapOS(op, newPath, err)
	}

	res, resolved := policy.Resolve(isSame(info))
	logResolution(op, newPath, res, resolved)

	switch res {
	case ResolveSkip:
		return skipped(op, newPath, info, resolved)
	case ResolveReplace:
		// a hard link or case-insensitive alias of the source is renamed
		// over, never deleted
		if !sameEntry(oldPath, info) {
			if err := os.RemoveAll(newPath); err != nil {
				return nil, Resolved{}, wrapOS(op, newPath, err)
			}
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, Resolved{}, wrapOS(op, oldPath, err)
		}
		return statDescriptor(op, newPath, resolved)
	case ResolveRename:
		renamed, err := renameTarget(newPath, file)
		if err != nil {
			return nil, Resolved{}, wrapOS(op, newPath, err)
		}
		if err := renameNoReplace(oldPath, renamed); err != nil {
			return nil, Resolved{}, wrapOS(op, oldPath, err)
		}
		return statDescriptor(op, renamed, resolved)
	}
	return nil, Resolved{}, errConflict(op, newPath, info)
}

// checkOverlap refuses a destination that is the source itself, one of its
// ancestors or lies inside it.
func checkOverlap(op, oldPath, newPath string) error {
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	switch {
	case oldPath == newPath:
		return errCode(op, newPath, CodeEINVAL, "source and destination are the same")
	case isWithin(oldPath, newPath):
		return errCode(op, newPath, CodeEINVAL, "destination contains the source")
	case isWithin(newPath, oldPath):
		return errCode(op, newPath, CodeEINVAL, "destination is inside the source")
	}
	return nil
}

// isWithin reports whether path lies strictly below dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sameEntry(path string, info fs.FileInfo) bool {
	src, err := os.Lstat(path)
	return err == nil && os.SameFile(src, info)
}

// Remove deletes target recursively. A missing target (or missing parent) is
// not an error, but an existing parent must be a directory.
func Remove(target string) error {
	const op = "remove"

	parent := filepath.Dir(target)
	pinfo, err := os.Lstat(parent)
	if isNotExist(err) {
		return nil
	}
	if err != nil {
		return wrapOS(op, parent, err)
	}
	if !pinfo.IsDir() {
		return errCode(op, parent, CodeENOTDIR, "parent is not a directory")
	}
	if err := os.RemoveAll(target); err != nil {
		return wrapOS(op, target, err)
	}
	return nil
}

func createExclusive(target string) (*os.File, error) {
	return os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
}

// skipped describes the existing entry a skip resolution kept. Kinds other
// than directories and regular files cannot be described and fail as
// unsupported.
func skipped(op, target string, info fs.FileInfo, resolved Resolved) (*EntryDescriptor, Resolved, error) {
	entry := describe(filepath.Base(target), info)
	if entry == nil {
		return nil, Resolved{}, errUnsupported(op, target, info)
	}
	return entry, resolved, nil
}

func statDescriptor(op, target string, resolved Resolved) (*EntryDescriptor, Resolved, error) {
	info, err := os.Lstat(target)
	if err != nil {
		return nil, Resolved{}, wrapOS(op, target, err)
	}
	return describe(filepath.Base(target), info), resolved, nil
}

func logResolution(op, target string, res Resolution, resolved Resolved) {
	slog.Debug("nfs conflict", "op", op, "path", target, "resolution", res, "same", resolved[0], "diff", resolved[1])
}
