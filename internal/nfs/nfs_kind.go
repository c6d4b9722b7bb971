package nfs

import (
	"io/fs"
	"time"
)

// Kind is the concrete type of a filesystem entry.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDirectory
	KindBlockDevice
	KindCharDevice
	KindSymlink
	KindFIFO
	KindSocket
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindFile:        "file",
	KindDirectory:   "directory",
	KindBlockDevice: "blockdevice",
	KindCharDevice:  "chardevice",
	KindSymlink:     "symlink",
	KindFIFO:        "fifo",
	KindSocket:      "socket",
}

var kindCodes = map[Kind]string{
	KindUnknown:     CodeIsUnknown,
	KindFile:        CodeIsFile,
	KindDirectory:   CodeIsDir,
	KindBlockDevice: CodeIsBlockDev,
	KindCharDevice:  CodeIsCharDev,
	KindSymlink:     CodeIsSymlink,
	KindFIFO:        CodeIsFIFO,
	KindSocket:      CodeIsSocket,
}

func (k Kind) String() string {
	return kindNames[k]
}

// Code returns the EIS* error code naming this kind.
func (k Kind) Code() string {
	return kindCodes[k]
}

// KindOf classifies an lstat result. Symlinks are never followed.
func KindOf(info fs.FileInfo) Kind {
	if info == nil {
		return KindUnknown
	}
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		return KindCharDevice
	case mode&fs.ModeDevice != 0:
		return KindBlockDevice
	case mode&fs.ModeNamedPipe != 0:
		return KindFIFO
	case mode&fs.ModeSocket != 0:
		return KindSocket
	}
	return KindUnknown
}

// Entry types used on the wire.
const (
	TypeDirectory = "directory"
	TypeFile      = "file"
)

// EntryDescriptor describes a directory or file. It is recomputed on every
// listing and never persisted.
type EntryDescriptor struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Size  *int64 `json:"size,omitempty"`
	Mtime int64  `json:"mtime"`
}

// describe builds a descriptor for a directory or regular file; it returns nil
// for any other kind.
func describe(name string, info fs.FileInfo) *EntryDescriptor {
	d := &EntryDescriptor{
		Name:  name,
		Mtime: info.ModTime().UnixNano() / int64(time.Millisecond),
	}
	switch KindOf(info) {
	case KindDirectory:
		d.Type = TypeDirectory
	case KindFile:
		d.Type = TypeFile
		size := info.Size()
		d.Size = &size
	default:
		return nil
	}
	return d
}
