package nfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPart struct {
	field    string
	filename string
	body     string
}

func writeParts(t *testing.T, w *multipart.Writer, parts []testPart) {
	t.Helper()
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename != "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(pw, p.body)
		require.NoError(t, err)
	}
}

func partReader(t *testing.T, parts ...testPart) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	writeParts(t, w, parts)
	require.NoError(t, w.Close())
	return multipart.NewReader(&buf, w.Boundary())
}

func preludeOptions(root string) IngestOptions {
	return IngestOptions{
		Mode: IngestPreludeMode,
		ResolveDir: func(rel string) (string, error) {
			return filepath.Join(root, rel), nil
		},
	}
}

func requireIndex(t *testing.T, err error, code string, index int) {
	t.Helper()
	e := requireCode(t, err, code, "")
	require.NotNil(t, e.Index)
	assert.Equal(t, index, *e.Index)
}

func TestIngest_PreludeMode(t *testing.T) {
	ctx := context.Background()

	t.Run("first part not prelude", func(t *testing.T) {
		root := t.TempDir()
		_, err := Ingest(ctx, partReader(t, testPart{field: "directory", body: "hello"}), preludeOptions(root))
		requireIndex(t, err, CodeInvalidRequest, -1)
		assert.NoDirExists(t, filepath.Join(root, "hello"))
	})

	t.Run("duplicate prelude", func(t *testing.T) {
		root := t.TempDir()
		_, err := Ingest(ctx, partReader(t,
			testPart{field: "prelude", body: `{}`},
			testPart{field: "prelude", body: `{}`},
		), preludeOptions(root))
		requireIndex(t, err, CodeInvalidRequest, 0)
	})

	t.Run("unknown field", func(t *testing.T) {
		root := t.TempDir()
		_, err := Ingest(ctx, partReader(t,
			testPart{field: "prelude", body: `{}`},
			testPart{field: "directory", body: "hello"},
			testPart{field: "bogus", body: "x"},
		), preludeOptions(root))
		requireIndex(t, err, CodeInvalidRequest, 1)
		assert.DirExists(t, filepath.Join(root, "hello"))
	})

	t.Run("prelude and directory", func(t *testing.T) {
		root := t.TempDir()
		results, err := Ingest(ctx, partReader(t,
			testPart{field: "prelude", body: `{}`},
			testPart{field: "directory", body: "hello"},
		), preludeOptions(root))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 0, results[0].Index)
		assert.Equal(t, "hello", results[0].Entry.Name)

		names, err := readNames(root)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, names)
	})

	t.Run("prelude path and policy", func(t *testing.T) {
		root := t.TempDir()
		mkdirs(t, root, "sub/hello")
		results, err := Ingest(ctx, partReader(t,
			testPart{field: "prelude", body: `{"path":"sub","policy":["skip",null]}`},
			testPart{field: "directory", body: "hello"},
		), preludeOptions(root))
		require.NoError(t, err)
		assert.Equal(t, Resolved{true, false}, results[0].Resolved)
	})

	t.Run("invalid prelude", func(t *testing.T) {
		root := t.TempDir()
		_, err := Ingest(ctx, partReader(t, testPart{field: "prelude", body: `{"policy":["bogus"]}`}), preludeOptions(root))
		requireIndex(t, err, CodeInvalidRequest, -1)
	})

	t.Run("empty stream", func(t *testing.T) {
		root := t.TempDir()
		_, err := Ingest(ctx, partReader(t), preludeOptions(root))
		requireIndex(t, err, CodeInvalidRequest, -1)
	})
}

func TestIngest_PathMode(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, "old.txt")

	results, err := Ingest(ctx, partReader(t,
		testPart{field: "directory", body: "docs"},
		testPart{field: "file", filename: "a.txt", body: "hello world"},
		testPart{field: "remove", filename: "old.txt"},
		testPart{field: "remove", filename: "never-existed"},
	), IngestOptions{Dir: root})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.DirExists(t, filepath.Join(root, "docs"))
	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.NoFileExists(t, filepath.Join(root, "old.txt"))

	assert.Equal(t, FieldFile, results[1].Field)
	require.NotNil(t, results[1].Entry.Size)
	assert.EqualValues(t, 11, *results[1].Entry.Size)

	_, err = Ingest(ctx, partReader(t, testPart{field: "prelude", body: `{}`}), IngestOptions{Dir: root})
	requireIndex(t, err, CodeInvalidRequest, 0)
}

func TestIngest_DirectoryConflict(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	mkdirs(t, root, "hello")
	writeFiles(t, root, "file")

	_, err := Ingest(ctx, partReader(t, testPart{field: "directory", body: "hello"}), IngestOptions{Dir: root})
	e := requireCode(t, err, CodeEEXIST, CodeIsDir)
	assert.Equal(t, 0, *e.Index)

	_, err = Ingest(ctx, partReader(t,
		testPart{field: "directory", body: "new"},
		testPart{field: "directory", body: "file"},
	), IngestOptions{Dir: root, Policy: Policy{Same: ActionSkip}})
	e = requireCode(t, err, CodeEEXIST, CodeIsFile)
	assert.Equal(t, 1, *e.Index)
	// earlier parts are not rolled back
	assert.DirExists(t, filepath.Join(root, "new"))

	results, err := Ingest(ctx, partReader(t, testPart{field: "directory", body: "hello"}), IngestOptions{Dir: root, Policy: Policy{Same: ActionSkip}})
	require.NoError(t, err)
	assert.Equal(t, Resolved{true, false}, results[0].Resolved)
}

func TestIngest_InvalidNames(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	cases := []testPart{
		{field: "directory", body: ".."},
		{field: "directory", body: ""},
		{field: "file", filename: "../escape.txt", body: "x"},
		{field: "file", body: "no filename"},
		{field: "remove", filename: "a/b"},
	}
	for _, p := range cases {
		_, err := Ingest(ctx, partReader(t, p), IngestOptions{Dir: root})
		requireIndex(t, err, CodeInvalidRequest, 0)
	}
	names, err := readNames(root)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escape.txt"))
}

func TestIngest_FileExists(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt")

	_, err := Ingest(context.Background(), partReader(t,
		testPart{field: "file", filename: "a.txt", body: "new content"},
	), IngestOptions{Dir: root, Policy: Policy{Same: ActionReplace}})
	e := requireCode(t, err, CodeEEXIST, CodeIsFile)
	assert.Equal(t, 0, *e.Index)

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", string(data))
}

func TestIngest_BrokenStreamRemovesPartialFile(t *testing.T) {
	root := t.TempDir()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	writeParts(t, w, []testPart{
		{field: "directory", body: "kept"},
		{field: "file", filename: "partial.bin", body: "some bytes that never finish"},
	})
	body := io.MultiReader(&buf, iotest.ErrReader(errors.New("connection reset")))

	_, err := Ingest(context.Background(), multipart.NewReader(body, w.Boundary()), IngestOptions{Dir: root})
	e, ok := AsError(err)
	require.True(t, ok)
	require.NotNil(t, e.Index)
	assert.Equal(t, 1, *e.Index)

	assert.DirExists(t, filepath.Join(root, "kept"))
	assert.NoFileExists(t, filepath.Join(root, "partial.bin"))
}

func TestIngest_Cancelled(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ingest(ctx, partReader(t, testPart{field: "directory", body: "hello"}), IngestOptions{Dir: root})
	requireIndex(t, err, "ECANCELED", 0)
	assert.NoDirExists(t, filepath.Join(root, "hello"))
}

func TestIngest_PreludeWithoutResolver(t *testing.T) {
	root := t.TempDir()
	parts := partReader(t,
		testPart{field: "prelude", body: `{"path":""}`},
		testPart{field: "directory", body: "hello"},
	)

	_, err := Ingest(context.Background(), parts, IngestOptions{Mode: IngestPreludeMode, Dir: root})
	e := requireCode(t, err, CodeEINVAL, "")
	assert.Nil(t, e.Index)
	assert.NoDirExists(t, filepath.Join(root, "hello"))

	// nothing was consumed
	part, err := parts.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "prelude", part.FormName())
}
