package nfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Error codes produced by this package. Native errno names (EACCES, EIO, ...)
// pass through unchanged in Error.Code.
const (
	CodeInvalidPath    = "EINVALIDPATH"
	CodeInvalidRequest = "EINVALIDREQUEST"
	CodeDriveNotFound  = "ENODRIVE"

	CodeEEXIST  = "EEXIST"
	CodeENOENT  = "ENOENT"
	CodeENOTDIR = "ENOTDIR"
	CodeEINVAL  = "EINVAL"

	CodeIsFile     = "EISFILE"
	CodeIsDir      = "EISDIR"
	CodeIsBlockDev = "EISBLOCKDEV"
	CodeIsCharDev  = "EISCHARDEV"
	CodeIsSymlink  = "EISSYMLINK"
	CodeIsFIFO     = "EISFIFO"
	CodeIsSocket   = "EISSOCKET"
	CodeIsUnknown  = "EISUNKNOWN"

	XCodeUnsupported = "EUNSUPPORTED"
)

// Error is the single error shape surfaced by the gateway.
type Error struct {
	Code    string
	XCode   string
	Index   *int
	Op      string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Code
	}
	s := fmt.Sprintf("nfs %s: %s", e.Op, msg)
	if e.XCode != "" {
		s += fmt.Sprintf(" (code=%s, xcode=%s)", e.Code, e.XCode)
	} else {
		s += fmt.Sprintf(" (code=%s)", e.Code)
	}
	if e.Index != nil {
		s += fmt.Sprintf(" [part %d]", *e.Index)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithIndex returns a copy of e tagged with a multipart part index.
func (e *Error) WithIndex(index int) *Error {
	c := *e
	c.Index = &index
	return &c
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the gateway code carried by err, or "" if none.
func CodeOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

func errInvalidPath(op, path string) *Error {
	return &Error{Code: CodeInvalidPath, Op: op, Path: path, Message: fmt.Sprintf("invalid path %q", path)}
}

func errInvalidRequest(op string, index int, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRequest, Op: op, Index: &index, Message: fmt.Sprintf(format, args...)}
}

func errDriveNotFound(op, id string) *Error {
	return &Error{Code: CodeDriveNotFound, Op: op, Message: fmt.Sprintf("drive %q not found", id)}
}

func errConflict(op, path string, info fs.FileInfo) *Error {
	return &Error{
		Code:    CodeEEXIST,
		XCode:   KindOf(info).Code(),
		Op:      op,
		Path:    path,
		Message: "target exists",
		Err:     fs.ErrExist,
	}
}

func errUnsupported(op, path string, info fs.FileInfo) *Error {
	return &Error{
		Code:    KindOf(info).Code(),
		XCode:   XCodeUnsupported,
		Op:      op,
		Path:    path,
		Message: fmt.Sprintf("unsupported entry type %s", KindOf(info)),
	}
}

func errCode(op, path, code, msg string) *Error {
	return &Error{Code: code, Op: op, Path: path, Message: msg}
}

// wrapOS converts a native filesystem error into an *Error whose Code is the
// errno name. Errors that are already *Error are returned as is.
func wrapOS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return &Error{Code: errnoCode(err), Op: op, Path: path, Err: err}
}

func errnoCode(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "ECANCELED"
	case errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	case errors.Is(err, fs.ErrExist):
		return CodeEEXIST
	case errors.Is(err, fs.ErrNotExist):
		return CodeENOENT
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.Is(err, os.ErrInvalid):
		return CodeEINVAL
	}
	return "EIO"
}

func isExist(err error) bool {
	return errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.ENOTEMPTY)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
