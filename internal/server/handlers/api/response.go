package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wisnuc/appifi/internal/nfs"
)

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}

// AbortWithNFSError writes err using the gateway's own codes. Errors that do
// not come from the nfs package are reported as internal errors.
func AbortWithNFSError(ctx *gin.Context, err error) {
	e, ok := nfs.AsError(err)
	if !ok {
		AbortWithError(ctx, http.StatusInternalServerError, CodeInternalError, err)
		return
	}
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(StatusOf(e), APIError{
		Code:    e.Code,
		XCode:   e.XCode,
		Index:   e.Index,
		Message: e.Error(),
	})
}

// StatusOf maps a gateway error to an HTTP status.
func StatusOf(e *nfs.Error) int {
	if e.XCode == nfs.XCodeUnsupported {
		return http.StatusForbidden
	}
	switch e.Code {
	case nfs.CodeInvalidPath, nfs.CodeInvalidRequest, nfs.CodeEINVAL:
		return http.StatusBadRequest
	case nfs.CodeDriveNotFound, nfs.CodeENOENT:
		return http.StatusNotFound
	case nfs.CodeEEXIST, nfs.CodeENOTDIR, "EACCES", "EPERM":
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// IsNFSError reports whether err carries a gateway code.
func IsNFSError(err error) bool {
	var e *nfs.Error
	return errors.As(err, &e)
}
