package nfs

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wisnuc/appifi/internal/nfs"
	"github.com/wisnuc/appifi/internal/server/accesslog"
	"github.com/wisnuc/appifi/internal/server/handlers/api"
)

type drives map[string]string

func (d drives) Mountpoint(id string) (string, bool) {
	mp, ok := d[id]
	return mp, ok
}

type testEnv struct {
	root   string
	router *gin.Engine
	audit  *accesslog.AccessLogger
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	svc, err := nfs.NewService(drives{"sdb1": root}, nfs.Config{})
	require.NoError(t, err)

	al, err := accesslog.New(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { al.Close() })

	h := New(svc)
	r := gin.New()
	r.Use(accesslog.Middleware(al), func(ctx *gin.Context) {
		ctx.Set("user", "alice")
	})
	r.GET("/nfs/:drive", h.Get)
	r.GET("/nfs/:drive/find", h.Find)
	r.POST("/nfs/:drive", h.Upload)
	r.POST("/nfs/:drive/mkdir", h.Mkdir)
	r.PATCH("/nfs/:drive", h.Move)
	r.DELETE("/nfs/:drive", h.Delete)

	return &testEnv{root: root, router: r, audit: al}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type part struct {
	field, filename, body string
}

func multipartBody(t *testing.T, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.field, p.filename)
		} else {
			w, err = mw.CreateFormField(p.field)
		}
		require.NoError(t, err)
		_, err = io.WriteString(w, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, query url.Values, parts ...part) *httptest.ResponseRecorder {
	body, contentType := multipartBody(t, parts...)
	target := "/nfs/sdb1"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return e.do(req)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var e api.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestUpload_DirectoryPolicy(t *testing.T) {
	env := setup(t)

	w := env.upload(t, url.Values{"path": {""}}, part{field: "directory", body: "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.DirExists(t, filepath.Join(env.root, "hello"))

	w = env.upload(t, url.Values{"path": {""}}, part{field: "directory", body: "hello"})
	require.Equal(t, http.StatusForbidden, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, nfs.CodeEEXIST, e.Code)
	assert.Equal(t, nfs.CodeIsDir, e.XCode)
	require.NotNil(t, e.Index)
	assert.Equal(t, 0, *e.Index)

	w = env.upload(t, url.Values{"path": {""}, "policy": {`["skip",null]`}}, part{field: "directory", body: "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var results []nfs.PartResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, nfs.Resolved{true, false}, results[0].Resolved)
}

func TestUpload_Prelude(t *testing.T) {
	env := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "docs"), 0o755))

	w := env.upload(t, nil,
		part{field: "prelude", body: `{"path":"docs"}`},
		part{field: "file", filename: "a.txt", body: "hello world"},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, err := os.ReadFile(filepath.Join(env.root, "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	w = env.upload(t, nil, part{field: "file", filename: "b.txt", body: "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, nfs.CodeInvalidRequest, e.Code)
	require.NotNil(t, e.Index)
	assert.Equal(t, -1, *e.Index)
}

func TestUpload_BadRequests(t *testing.T) {
	env := setup(t)

	w := env.upload(t, url.Values{"path": {""}, "policy": {`["nope"]`}}, part{field: "directory", body: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/nfs/sdb1?path=", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w = env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, nfs.CodeInvalidRequest, decodeError(t, w).Code)

	w = env.upload(t, url.Values{"path": {"../etc"}}, part{field: "directory", body: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, nfs.CodeInvalidPath, decodeError(t, w).Code)
}

func TestGet_SymlinkUnsupported(t *testing.T) {
	env := setup(t)
	require.NoError(t, os.Symlink("/etc", filepath.Join(env.root, "hello")))

	w := env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1?path=hello", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, nfs.CodeIsSymlink, e.Code)
	assert.Equal(t, nfs.XCodeUnsupported, e.XCode)
}

func TestGet_ListAndStream(t *testing.T) {
	env := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "zdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "a.txt"), []byte("content"), 0o644))

	w := env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var entries []nfs.EntryDescriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "zdir", entries[0].Name)
	assert.Equal(t, nfs.TypeDirectory, entries[0].Type)
	assert.Equal(t, "a.txt", entries[1].Name)

	w = env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1?path=a.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "content", w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1?path=missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/nfs/nodrive", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, nfs.CodeDriveNotFound, decodeError(t, w).Code)
}

func TestDelete(t *testing.T) {
	env := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(env.root, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "file"), nil, 0o644))

	w := env.do(httptest.NewRequest(http.MethodDelete, "/nfs/sdb1?path=dir/missing", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/nfs/sdb1?path=file/child", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, nfs.CodeENOTDIR, decodeError(t, w).Code)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/nfs/sdb1?path=dir", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoDirExists(t, filepath.Join(env.root, "dir"))

	w = env.do(httptest.NewRequest(http.MethodDelete, "/nfs/sdb1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, nfs.CodeEINVAL, decodeError(t, w).Code)
}

func TestMkdirAndMove(t *testing.T) {
	env := setup(t)

	w := env.do(httptest.NewRequest(http.MethodPost, "/nfs/sdb1/mkdir", strings.NewReader(`{"path":"a"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodPost, "/nfs/sdb1/mkdir", strings.NewReader(`{"path":"a","policy":["rename",null]}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res EntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "a (2)", res.Entry.Name)
	assert.Equal(t, nfs.Resolved{true, false}, res.Resolved)

	w = env.do(httptest.NewRequest(http.MethodPatch, "/nfs/sdb1", strings.NewReader(`{"oldPath":"a (2)","newPath":"a"}`)))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, nfs.CodeEEXIST, decodeError(t, w).Code)

	w = env.do(httptest.NewRequest(http.MethodPatch, "/nfs/sdb1", strings.NewReader(`{"oldPath":"a (2)","newPath":"b"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.DirExists(t, filepath.Join(env.root, "b"))

	w = env.do(httptest.NewRequest(http.MethodPatch, "/nfs/sdb1", strings.NewReader(`{"oldPath":`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	entries, err := env.audit.UserLogs("alice", 100)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, accesslog.OpMkdir, entries[0].Op)
	assert.Equal(t, nfs.CodeEEXIST, entries[2].Code)
	assert.Equal(t, http.StatusForbidden, entries[2].Status)
	assert.Equal(t, "b", entries[3].NewPath)
}

func TestFind(t *testing.T) {
	env := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.root, "a", "b", "ab.txt"), nil, 0o644))

	w := env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1/find?name=b&count=1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var found []nfs.FindEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, []string{"a", "b"}, found[0].Namepath)

	last, err := json.Marshal(nfs.FindCursor{Type: found[0].Type, Namepath: found[0].Namepath})
	require.NoError(t, err)
	q := url.Values{"name": {"b"}, "last": {string(last)}}
	w = env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1/find?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, []string{"a", "b", "ab.txt"}, found[0].Namepath)

	w = env.do(httptest.NewRequest(http.MethodGet, "/nfs/sdb1/find?name=b&last=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
