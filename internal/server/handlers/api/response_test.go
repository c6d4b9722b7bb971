package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wisnuc/appifi/internal/nfs"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    *nfs.Error
		status int
	}{
		{&nfs.Error{Code: nfs.CodeInvalidPath}, http.StatusBadRequest},
		{&nfs.Error{Code: nfs.CodeInvalidRequest}, http.StatusBadRequest},
		{&nfs.Error{Code: nfs.CodeEINVAL}, http.StatusBadRequest},
		{&nfs.Error{Code: nfs.CodeDriveNotFound}, http.StatusNotFound},
		{&nfs.Error{Code: nfs.CodeENOENT}, http.StatusNotFound},
		{&nfs.Error{Code: nfs.CodeEEXIST, XCode: nfs.CodeIsDir}, http.StatusForbidden},
		{&nfs.Error{Code: nfs.CodeIsSymlink, XCode: nfs.XCodeUnsupported}, http.StatusForbidden},
		{&nfs.Error{Code: nfs.CodeENOTDIR}, http.StatusForbidden},
		{&nfs.Error{Code: "EACCES"}, http.StatusForbidden},
		{&nfs.Error{Code: "EPERM"}, http.StatusForbidden},
		{&nfs.Error{Code: "EIO"}, http.StatusInternalServerError},
		{&nfs.Error{Code: "ECANCELED"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code+"/"+tt.err.XCode, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestAbortWithNFSError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	e := (&nfs.Error{Code: nfs.CodeEEXIST, XCode: nfs.CodeIsFile, Op: "ingest", Message: "target exists"}).WithIndex(2)
	AbortWithNFSError(ctx, fmt.Errorf("upload: %w", e))

	assert.True(t, ctx.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, nfs.CodeEEXIST, body.Code)
	assert.Equal(t, nfs.CodeIsFile, body.XCode)
	require.NotNil(t, body.Index)
	assert.Equal(t, 2, *body.Index)
	assert.NotEmpty(t, body.Message)
}

func TestAbortWithNFSError_Foreign(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	AbortWithNFSError(ctx, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":"E_INTERNAL_ERROR","error":"boom"}`, w.Body.String())
	assert.False(t, IsNFSError(errors.New("boom")))
}
