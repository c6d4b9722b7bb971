package nfs

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wisnuc/appifi/internal/nfs"
	"github.com/wisnuc/appifi/internal/server/accesslog"
	"github.com/wisnuc/appifi/internal/server/handlers/api"
	"github.com/wisnuc/appifi/internal/utils"
)

type NFSHandler struct {
	svc *nfs.Service
}

func New(svc *nfs.Service) *NFSHandler {
	return &NFSHandler{
		svc: svc,
	}
}

// Get lists a directory or streams a regular file.
func (h *NFSHandler) Get(ctx *gin.Context) {
	var req GetRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		h.fail(ctx, accesslog.Entry{Op: accesslog.OpGet}, invalidRequest("get", "failed to bind query: %v", err))
		return
	}
	entry := accesslog.Entry{Op: accesslog.OpGet, Drive: ctx.Param("drive"), Path: req.Path}

	res, err := h.svc.Get(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, req.Path)
	if err != nil {
		h.fail(ctx, entry, err)
		return
	}

	if res.File != nil {
		defer res.File.Close()
		ctx.Header("Content-Type", utils.DetectContentType(res.Info.Name()))
		http.ServeContent(ctx.Writer, ctx.Request, res.Info.Name(), res.Info.ModTime(), res.File)
	} else {
		ctx.PureJSON(http.StatusOK, res.Entries)
	}
	h.audit(ctx, entry)
}

func (h *NFSHandler) Find(ctx *gin.Context) {
	entry := accesslog.Entry{Op: accesslog.OpFind, Drive: ctx.Param("drive")}

	var req FindRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		h.fail(ctx, entry, invalidRequest("find", "failed to bind query: %v", err))
		return
	}
	entry.Path = req.Path

	var cursor *nfs.FindCursor
	if req.Last != "" {
		cursor = &nfs.FindCursor{}
		if err := utils.JSONUnmarshal([]byte(req.Last), cursor); err != nil {
			h.fail(ctx, entry, invalidRequest("find", "invalid last: %v", err))
			return
		}
	}

	found, err := h.svc.Find(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, req.Path, req.Name, req.Count, cursor)
	if err != nil {
		h.fail(ctx, entry, err)
		return
	}

	ctx.PureJSON(http.StatusOK, found)
	h.audit(ctx, entry)
}

// Upload ingests a multipart body. With a path query the parts apply to that
// directory; without one the body must open with a prelude part.
func (h *NFSHandler) Upload(ctx *gin.Context) {
	entry := accesslog.Entry{Op: accesslog.OpIngest, Drive: ctx.Param("drive")}

	var rel *string
	if path, ok := ctx.GetQuery("path"); ok {
		rel = &path
		entry.Path = path
	}

	policy, err := nfs.ParsePolicy([]byte(ctx.Query("policy")))
	if err != nil {
		h.fail(ctx, entry, invalidRequest("ingest", "invalid policy: %v", err))
		return
	}

	reader, err := ctx.Request.MultipartReader()
	if err != nil {
		h.fail(ctx, entry, invalidRequest("ingest", "invalid multipart body: %v", err))
		return
	}

	results, err := h.svc.Ingest(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, rel, policy, reader)
	if err != nil {
		h.fail(ctx, entry, err)
		return
	}

	entry.Parts = len(results)
	ctx.PureJSON(http.StatusOK, results)
	h.audit(ctx, entry)
}

func (h *NFSHandler) Mkdir(ctx *gin.Context) {
	entry := accesslog.Entry{Op: accesslog.OpMkdir, Drive: ctx.Param("drive")}

	var req MkdirRequest
	if err := utils.JSONDecode(ctx.Request.Body, &req); err != nil {
		h.fail(ctx, entry, invalidRequest("mkdir", "failed to decode body: %v", err))
		return
	}
	entry.Path = req.Path

	desc, resolved, err := h.svc.Mkdir(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, req.Path, req.Policy)
	if err != nil {
		h.fail(ctx, entry, err)
		return
	}

	entry.Resolved = (*[2]bool)(&resolved)
	ctx.PureJSON(http.StatusOK, &EntryResponse{Entry: desc, Resolved: resolved})
	h.audit(ctx, entry)
}

// Move renames oldPath to newPath within one drive.
func (h *NFSHandler) Move(ctx *gin.Context) {
	entry := accesslog.Entry{Op: accesslog.OpMove, Drive: ctx.Param("drive")}

	var req MoveRequest
	if err := utils.JSONDecode(ctx.Request.Body, &req); err != nil {
		h.fail(ctx, entry, invalidRequest("move", "failed to decode body: %v", err))
		return
	}
	entry.Path, entry.NewPath = req.OldPath, req.NewPath

	desc, resolved, err := h.svc.Move(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, req.OldPath, req.NewPath, req.Policy)
	if err != nil {
		h.fail(ctx, entry, err)
		return
	}

	entry.Resolved = (*[2]bool)(&resolved)
	ctx.PureJSON(http.StatusOK, &EntryResponse{Entry: desc, Resolved: resolved})
	h.audit(ctx, entry)
}

func (h *NFSHandler) Delete(ctx *gin.Context) {
	entry := accesslog.Entry{Op: accesslog.OpDelete, Drive: ctx.Param("drive")}

	var req DeleteRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		h.fail(ctx, entry, invalidRequest("delete", "failed to bind query: %v", err))
		return
	}
	entry.Path = req.Path

	if err := h.svc.Delete(ctx.Request.Context(), ctx.GetString("user"), entry.Drive, req.Path); err != nil {
		h.fail(ctx, entry, err)
		return
	}

	ctx.String(http.StatusOK, "")
	h.audit(ctx, entry)
}

func (h *NFSHandler) fail(ctx *gin.Context, entry accesslog.Entry, err error) {
	api.AbortWithNFSError(ctx, err)
	entry.Code = nfs.CodeOf(err)
	h.audit(ctx, entry)
}

func (h *NFSHandler) audit(ctx *gin.Context, entry accesslog.Entry) {
	if al := accesslog.FromContext(ctx); al != nil {
		al.LogRequest(ctx, entry)
	}
}

func invalidRequest(op, format string, args ...any) *nfs.Error {
	return &nfs.Error{Code: nfs.CodeInvalidRequest, Op: op, Message: fmt.Sprintf(format, args...)}
}
