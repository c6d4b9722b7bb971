package nfs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/wisnuc/appifi/internal/utils"
)

// Part field names understood by Ingest.
const (
	FieldPrelude   = "prelude"
	FieldDirectory = "directory"
	FieldFile      = "file"
	FieldRemove    = "remove"
)

// maxInlineBody caps prelude and directory part bodies, which are read whole.
const maxInlineBody = 64 << 10

// PartReader yields the demultiplexed parts of a multipart body in order.
// *multipart.Reader satisfies it.
type PartReader interface {
	NextPart() (*multipart.Part, error)
}

type IngestMode int

const (
	// IngestPathMode works in a directory chosen by the caller. Parts are
	// numbered from 0.
	IngestPathMode IngestMode = iota
	// IngestPreludeMode takes the working directory from a leading prelude
	// part numbered -1.
	IngestPreludeMode
)

// IngestOptions configures one ingestion.
type IngestOptions struct {
	Mode IngestMode
	// Dir is the working directory in path mode.
	Dir string
	// Policy applies to directory parts. A prelude may override it.
	Policy Policy
	// ResolveDir turns the prelude path into a working directory.
	ResolveDir func(rel string) (string, error)
}

// Prelude is the JSON body of a prelude part.
type Prelude struct {
	Path   string  `json:"path"`
	Policy *Policy `json:"policy,omitempty"`
}

// PartResult reports what one part did.
type PartResult struct {
	Index    int              `json:"index"`
	Field    string           `json:"field"`
	Name     string           `json:"name,omitempty"`
	Entry    *EntryDescriptor `json:"entry,omitempty"`
	Resolved Resolved         `json:"resolved"`
}

type ingestion struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	opts   IngestOptions
	dir    string
	policy Policy
	index  int
}

// Ingest consumes parts one at a time, applying each to the filesystem
// before reading the next. The first failing part stops the ingestion and
// its error carries that part's index. Mutations made by earlier parts are
// kept.
//
// Prelude mode requires opts.ResolveDir; without it Ingest fails with EINVAL
// before reading any part.
func Ingest(ctx context.Context, parts PartReader, opts IngestOptions) ([]PartResult, error) {
	if opts.Mode == IngestPreludeMode && opts.ResolveDir == nil {
		return nil, errCode("ingest", "", CodeEINVAL, "prelude mode without a directory resolver")
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	in := &ingestion{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		dir:    opts.Dir,
		policy: opts.Policy,
	}
	if opts.Mode == IngestPreludeMode {
		in.index = -1
	}

	results := []PartResult{}
	for ; ; in.index++ {
		if err := context.Cause(ctx); err != nil {
			return nil, in.fail(err)
		}
		part, err := parts.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, in.fail(err)
		}

		res, err := in.handle(part)
		part.Close()
		if err != nil {
			return nil, in.fail(err)
		}
		if res != nil {
			results = append(results, *res)
		}
	}

	if opts.Mode == IngestPreludeMode && in.index == -1 {
		return nil, errInvalidRequest("ingest", -1, "missing prelude")
	}
	return results, nil
}

// fail tags err with the current part index and cancels the pipeline. Only
// the first failure is recorded.
func (in *ingestion) fail(err error) error {
	e, ok := AsError(err)
	if !ok {
		e = &Error{Code: errnoCode(err), Op: "ingest", Path: in.dir, Err: err}
	}
	if e.Index == nil {
		e = e.WithIndex(in.index)
	}
	in.cancel(e)
	return e
}

func (in *ingestion) handle(part *multipart.Part) (*PartResult, error) {
	field := part.FormName()

	if in.opts.Mode == IngestPreludeMode && in.index == -1 {
		if field != FieldPrelude {
			return nil, errInvalidRequest("ingest", in.index, "first part must be %s, got %q", FieldPrelude, field)
		}
		return nil, in.prelude(part)
	}
	if field == FieldPrelude {
		return nil, errInvalidRequest("ingest", in.index, "unexpected %s part", FieldPrelude)
	}

	switch field {
	case FieldDirectory:
		return in.directory(part)
	case FieldFile:
		return in.file(part)
	case FieldRemove:
		return in.remove(part)
	}
	return nil, errInvalidRequest("ingest", in.index, "unknown field %q", field)
}

func (in *ingestion) prelude(part *multipart.Part) error {
	body, err := readInline(part)
	if err != nil {
		return err
	}
	var p Prelude
	if err := utils.JSONUnmarshal(body, &p); err != nil {
		return errInvalidRequest("ingest", in.index, "invalid prelude: %v", err)
	}
	dir, err := in.opts.ResolveDir(p.Path)
	if err != nil {
		return err
	}
	in.dir = dir
	if p.Policy != nil {
		in.policy = *p.Policy
	}
	slog.Debug("nfs ingest prelude", "index", in.index, "dir", dir, "policy", in.policy)
	return nil
}

func (in *ingestion) directory(part *multipart.Part) (*PartResult, error) {
	body, err := readInline(part)
	if err != nil {
		return nil, err
	}
	name := string(body)
	if !IsValidName(name) {
		return nil, errInvalidRequest("ingest", in.index, "invalid directory name %q", name)
	}

	entry, resolved, err := Mkdir(filepath.Join(in.dir, name), in.policy)
	if err != nil {
		return nil, err
	}
	slog.Info("nfs ingest directory", "index", in.index, "name", name, "resolved", resolved)
	return &PartResult{Index: in.index, Field: FieldDirectory, Name: name, Entry: entry, Resolved: resolved}, nil
}

func (in *ingestion) file(part *multipart.Part) (*PartResult, error) {
	name, err := in.filename(part)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(in.dir, name)

	f, resolved, err := CreateFile(target, NoPolicy)
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, &ctxReader{ctx: in.ctx, r: part})
	if err != nil {
		f.Close()
		os.Remove(target)
		return nil, wrapOS("ingest", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return nil, wrapOS("ingest", target, err)
	}

	entry, _, err := statDescriptor("ingest", target, resolved)
	if err != nil {
		return nil, err
	}
	slog.Info("nfs ingest file", "index", in.index, "name", name, "size", humanize.Bytes(uint64(n)))
	return &PartResult{Index: in.index, Field: FieldFile, Name: name, Entry: entry, Resolved: resolved}, nil
}

func (in *ingestion) remove(part *multipart.Part) (*PartResult, error) {
	name, err := in.filename(part)
	if err != nil {
		return nil, err
	}
	if err := Remove(filepath.Join(in.dir, name)); err != nil {
		return nil, err
	}
	slog.Info("nfs ingest remove", "index", in.index, "name", name)
	return &PartResult{Index: in.index, Field: FieldRemove, Name: name}, nil
}

// filename returns the part's filename exactly as sent. Part.FileName strips
// directory components, which would hide a traversal attempt.
func (in *ingestion) filename(part *multipart.Part) (string, error) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", errInvalidRequest("ingest", in.index, "invalid content disposition: %v", err)
	}
	name := params["filename"]
	if !IsValidName(name) {
		return "", errInvalidRequest("ingest", in.index, "invalid filename %q", name)
	}
	return name, nil
}

func readInline(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxInlineBody+1))
	if err != nil {
		return nil, wrapOS("ingest", "", err)
	}
	if len(body) > maxInlineBody {
		return nil, &Error{Code: CodeInvalidRequest, Op: "ingest", Message: "part body too large"}
	}
	return body, nil
}

// ctxReader stops a copy as soon as the ingestion is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := context.Cause(r.ctx); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
