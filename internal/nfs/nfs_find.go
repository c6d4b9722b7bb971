package nfs

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FindEntry is one search hit. Namepath is relative to the search root.
type FindEntry struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Namepath []string `json:"namepath"`
}

// FindCursor is an exclusive resume bound: the last entry of a previous
// page. Namepath is relative to the search root.
type FindCursor struct {
	Type     string   `json:"type"`
	Namepath []string `json:"namepath"`
}

func (c *FindCursor) valid() bool {
	if c == nil {
		return true
	}
	if c.Type != TypeDirectory && c.Type != TypeFile {
		return false
	}
	if len(c.Namepath) == 0 {
		return false
	}
	for _, name := range c.Namepath {
		if !IsValidName(name) {
			return false
		}
	}
	return true
}

// Finder runs paginated depth-first name searches. Siblings are ordered
// directories first, then by locale-aware name comparison.
type Finder struct {
	tag    language.Tag
	hidden *gitignore.GitIgnore
}

// NewFinder builds a finder. Entries whose names match one of the
// gitignore-style hidden patterns are neither reported nor descended into.
func NewFinder(tag language.Tag, hidden ...string) *Finder {
	return &Finder{tag: tag, hidden: compileHidden(hidden)}
}

// Find returns up to max entries under root whose name contains token, in
// pre-order, strictly after cursor. Unreadable subtrees are skipped.
func (f *Finder) Find(ctx context.Context, root, token string, max int, cursor *FindCursor) ([]FindEntry, error) {
	if max <= 0 {
		return []FindEntry{}, nil
	}
	w := &walker{
		ctx:   ctx,
		order: newOrdering(f.tag, f.hidden),
		token: token,
		max:   max,
		out:   make([]FindEntry, 0, min(max, 64)),
	}
	w.visit(root, nil, cursor)
	return w.out, ctx.Err()
}

type walker struct {
	ctx   context.Context
	order *ordering
	token string
	max   int
	out   []FindEntry
}

// visit walks dir and reports whether the search is finished.
func (w *walker) visit(dir string, prefix []string, cursor *FindCursor) bool {
	if w.ctx.Err() != nil {
		return true
	}
	children, err := w.order.list(dir)
	if err != nil {
		return false
	}

	for _, c := range children {
		namepath := append(slices.Clip(prefix), c.name)
		abs := filepath.Join(dir, c.name)

		if cursor != nil {
			switch w.order.position(c, len(prefix), cursor) {
			case posBefore:
				continue
			case posAncestor:
				if w.visit(abs, namepath, cursor) {
					return true
				}
				cursor = nil
				continue
			case posAt:
				cursor = nil
				if c.dir && w.visit(abs, namepath, nil) {
					return true
				}
				continue
			default:
				cursor = nil
			}
		}

		if strings.Contains(c.name, w.token) {
			w.out = append(w.out, FindEntry{Type: c.typ(), Name: c.name, Namepath: namepath})
			if len(w.out) >= w.max {
				return true
			}
		}
		if c.dir && w.visit(abs, namepath, nil) {
			return true
		}
	}
	return false
}

type child struct {
	name string
	dir  bool
	info os.FileInfo
}

func (c child) typ() string {
	if c.dir {
		return TypeDirectory
	}
	return TypeFile
}

type position int

const (
	posBefore position = iota
	posAt
	posAfter
	posAncestor
)

// ordering sorts siblings. A collator is not safe for concurrent use, so each
// search or listing builds its own.
type ordering struct {
	col    *collate.Collator
	hidden *gitignore.GitIgnore
}

func newOrdering(tag language.Tag, hidden *gitignore.GitIgnore) *ordering {
	return &ordering{col: collate.New(tag), hidden: hidden}
}

func compileHidden(patterns []string) *gitignore.GitIgnore {
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.CompileIgnoreLines(patterns...)
}

// isHidden matches a single entry name. Directories are tested with a
// trailing slash so that "name/" patterns apply to them only.
func (o *ordering) isHidden(name string, dir bool) bool {
	if o.hidden == nil {
		return false
	}
	if dir {
		name += "/"
	}
	return o.hidden.MatchesPath(name)
}

func (o *ordering) compare(aDir bool, aName string, bDir bool, bName string) int {
	if aDir != bDir {
		if aDir {
			return -1
		}
		return 1
	}
	if c := o.col.CompareString(aName, bName); c != 0 {
		return c
	}
	return strings.Compare(aName, bName)
}

// list returns the directories and regular files of dir in traversal order.
// Entries that fail to stat, hidden entries, and every other kind are left
// out.
func (o *ordering) list(dir string) ([]child, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	children := make([]child, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		var c child
		switch KindOf(info) {
		case KindDirectory:
			c = child{name: e.Name(), dir: true, info: info}
		case KindFile:
			c = child{name: e.Name(), info: info}
		default:
			continue
		}
		if o.isHidden(c.name, c.dir) {
			continue
		}
		children = append(children, c)
	}
	slices.SortFunc(children, func(a, b child) int {
		return o.compare(a.dir, a.name, b.dir, b.name)
	})
	return children, nil
}

// position places c, found at depth, relative to cursor. The caller
// guarantees that cursor's first depth components are c's ancestors.
func (o *ordering) position(c child, depth int, cursor *FindCursor) position {
	if depth >= len(cursor.Namepath) {
		return posAfter
	}
	last := depth == len(cursor.Namepath)-1
	curDir := !last || cursor.Type == TypeDirectory
	cmp := o.compare(c.dir, c.name, curDir, cursor.Namepath[depth])
	switch {
	case cmp < 0:
		return posBefore
	case cmp > 0:
		return posAfter
	case last:
		return posAt
	}
	return posAncestor
}
