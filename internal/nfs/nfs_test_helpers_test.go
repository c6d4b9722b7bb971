package nfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticDrives map[string]string

func (d staticDrives) Mountpoint(id string) (string, bool) {
	mp, ok := d[id]
	return mp, ok
}

func mkdirs(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		require.NoError(t, os.MkdirAll(filepath.Join(root, rel), 0o755))
	}
}

func writeFiles(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
}

func requireCode(t *testing.T, err error, code, xcode string) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *nfs.Error, got %T: %v", err, err)
	require.Equal(t, code, e.Code, e.Error())
	require.Equal(t, xcode, e.XCode, e.Error())
	return e
}
