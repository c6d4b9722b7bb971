package drive

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wisnuc/appifi/internal/drive"
	"github.com/wisnuc/appifi/internal/server/accesslog"
	"github.com/wisnuc/appifi/internal/server/handlers/api"
	"github.com/wisnuc/appifi/internal/utils"
)

type DriveHandler struct {
	svc *drive.Service
}

func New(svc *drive.Service) *DriveHandler {
	return &DriveHandler{
		svc: svc,
	}
}

func (h *DriveHandler) List(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, h.svc.Registry().List())
}

// Replace swaps in a new drive snapshot and persists it.
func (h *DriveHandler) Replace(ctx *gin.Context) {
	var drives []drive.Drive
	if err := utils.JSONDecode(ctx.Request.Body, &drives); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to decode body: %w", err))
		return
	}

	if err := h.svc.Replace(ctx.Request.Context(), drives); err != nil {
		if errors.Is(err, drive.ErrInvalidDrive) || errors.Is(err, drive.ErrDuplicateDrive) {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeDriveInvalid, err)
		} else {
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeDriveSaveFailed, err)
		}
		return
	}

	ctx.PureJSON(http.StatusOK, h.svc.Registry().List())
	if al := accesslog.FromContext(ctx); al != nil {
		al.LogRequest(ctx, accesslog.Entry{Op: accesslog.OpDrives, Parts: len(drives)})
	}
}
