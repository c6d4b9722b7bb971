package nfs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/language"
)

const (
	DefaultLocale       = "en"
	DefaultMaxFindCount = 1000
)

type Config struct {
	Locale       string `mapstructure:"locale"`
	MaxFindCount int    `mapstructure:"max_find_count"`
	// Hidden holds gitignore-style patterns matched against entry names.
	// Matching entries are left out of listings and searches but can still
	// be addressed directly.
	Hidden []string `mapstructure:"hidden"`
}

// Service is the gateway facade. It is safe for concurrent use; requests
// share nothing but the filesystem and the drive snapshot.
type Service struct {
	resolver *PathResolver
	finder   *Finder
	tag      language.Tag
	hidden   *gitignore.GitIgnore
	maxFind  int
}

func NewService(drives DriveLookup, cfg Config) (*Service, error) {
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
	}
	if cfg.MaxFindCount <= 0 {
		cfg.MaxFindCount = DefaultMaxFindCount
	}
	return &Service{
		resolver: NewPathResolver(drives),
		finder:   NewFinder(tag, cfg.Hidden...),
		tag:      tag,
		hidden:   compileHidden(cfg.Hidden),
		maxFind:  cfg.MaxFindCount,
	}, nil
}

func (s *Service) Resolver() *PathResolver {
	return s.resolver
}

// GetResult holds either a directory listing or an open regular file.
type GetResult struct {
	Entries []*EntryDescriptor
	File    *os.File
	Info    fs.FileInfo
}

// Get lists a directory or opens a regular file. Any other kind, symlinks
// included, fails with xcode EUNSUPPORTED. The caller closes File.
func (s *Service) Get(ctx context.Context, user, drive, rel string) (*GetResult, error) {
	const op = "get"

	target, err := s.resolver.ResolvePath(drive, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(target)
	if err != nil {
		return nil, wrapOS(op, rel, err)
	}

	switch KindOf(info) {
	case KindDirectory:
		entries, err := s.list(target)
		if err != nil {
			return nil, wrapOS(op, rel, err)
		}
		slog.Debug("nfs list", "user", user, "drive", drive, "path", rel, "entries", len(entries))
		return &GetResult{Entries: entries, Info: info}, nil
	case KindFile:
		f, err := os.Open(target)
		if err != nil {
			return nil, wrapOS(op, rel, err)
		}
		slog.Debug("nfs open", "user", user, "drive", drive, "path", rel, "size", humanize.Bytes(uint64(info.Size())))
		return &GetResult{File: f, Info: info}, nil
	}
	return nil, errUnsupported(op, rel, info)
}

func (s *Service) list(dir string) ([]*EntryDescriptor, error) {
	children, err := newOrdering(s.tag, s.hidden).list(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]*EntryDescriptor, 0, len(children))
	for _, c := range children {
		entries = append(entries, describe(c.name, c.info))
	}
	return entries, nil
}

// Mkdir creates one directory.
func (s *Service) Mkdir(ctx context.Context, user, drive, rel string, policy Policy) (*EntryDescriptor, Resolved, error) {
	target, err := s.mutationTarget("mkdir", drive, rel)
	if err != nil {
		return nil, Resolved{}, err
	}
	entry, resolved, err := Mkdir(target, policy)
	if err != nil {
		return nil, Resolved{}, err
	}
	slog.Info("nfs mkdir", "user", user, "drive", drive, "path", rel, "resolved", resolved)
	return entry, resolved, nil
}

// Ingest streams a multipart body into a drive. A nil rel selects prelude
// mode, where the first part names the working directory.
func (s *Service) Ingest(ctx context.Context, user, drive string, rel *string, policy Policy, parts PartReader) ([]PartResult, error) {
	opts := IngestOptions{Policy: policy}
	if rel == nil {
		opts.Mode = IngestPreludeMode
		if _, err := s.resolver.ResolveID(drive); err != nil {
			return nil, err
		}
		opts.ResolveDir = func(p string) (string, error) {
			return s.workingDir(drive, p)
		}
	} else {
		dir, err := s.workingDir(drive, *rel)
		if err != nil {
			return nil, err
		}
		opts.Dir = dir
	}

	results, err := Ingest(ctx, parts, opts)
	if err != nil {
		slog.Warn("nfs ingest failed", "user", user, "drive", drive, "error", err)
		return nil, err
	}
	slog.Info("nfs ingest", "user", user, "drive", drive, "parts", len(results))
	return results, nil
}

func (s *Service) workingDir(drive, rel string) (string, error) {
	const op = "ingest"

	dir, err := s.resolver.ResolvePath(drive, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(dir)
	if err != nil {
		return "", wrapOS(op, rel, err)
	}
	if !info.IsDir() {
		return "", errUnsupported(op, rel, info)
	}
	return dir, nil
}

// Move renames an entry, dispatching on the source's kind.
func (s *Service) Move(ctx context.Context, user, drive, oldRel, newRel string, policy Policy) (*EntryDescriptor, Resolved, error) {
	const op = "move"

	oldPath, newPath, err := s.resolver.ResolvePaths(drive, oldRel, newRel)
	if err != nil {
		return nil, Resolved{}, err
	}
	if oldRel == "" || newRel == "" {
		return nil, Resolved{}, errCode(op, "", CodeEINVAL, "cannot move a drive root")
	}
	info, err := os.Lstat(oldPath)
	if err != nil {
		return nil, Resolved{}, wrapOS(op, oldRel, err)
	}

	var entry *EntryDescriptor
	var resolved Resolved
	switch KindOf(info) {
	case KindDirectory:
		entry, resolved, err = MoveDir(oldPath, newPath, policy)
	case KindFile:
		entry, resolved, err = MoveFile(oldPath, newPath, policy)
	default:
		return nil, Resolved{}, errUnsupported(op, oldRel, info)
	}
	if err != nil {
		return nil, Resolved{}, err
	}
	slog.Info("nfs move", "user", user, "drive", drive, "from", oldRel, "to", newRel, "resolved", resolved)
	return entry, resolved, nil
}

// Delete removes an entry recursively. Missing entries are not an error.
func (s *Service) Delete(ctx context.Context, user, drive, rel string) error {
	target, err := s.mutationTarget("delete", drive, rel)
	if err != nil {
		return err
	}
	if err := Remove(target); err != nil {
		return err
	}
	slog.Info("nfs delete", "user", user, "drive", drive, "path", rel)
	return nil
}

// Find searches below rel for names containing token. count is clamped to
// the configured maximum.
func (s *Service) Find(ctx context.Context, user, drive, rel, token string, count int, cursor *FindCursor) ([]FindEntry, error) {
	const op = "find"

	if !cursor.valid() {
		return nil, errCode(op, rel, CodeInvalidRequest, "invalid cursor")
	}
	if count <= 0 || count > s.maxFind {
		count = s.maxFind
	}
	root, err := s.resolver.ResolvePath(drive, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(root)
	if err != nil {
		return nil, wrapOS(op, rel, err)
	}
	if !info.IsDir() {
		return nil, errUnsupported(op, rel, info)
	}

	found, err := s.finder.Find(ctx, root, token, count, cursor)
	if err != nil {
		return nil, wrapOS(op, rel, err)
	}
	slog.Debug("nfs find", "user", user, "drive", drive, "path", rel, "token", token, "found", len(found))
	return found, nil
}

// mutationTarget resolves rel and refuses the drive root itself.
func (s *Service) mutationTarget(op, drive, rel string) (string, error) {
	target, err := s.resolver.ResolvePath(drive, rel)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", errCode(op, rel, CodeEINVAL, "cannot modify a drive root")
	}
	return target, nil
}
