package nfs

import "github.com/wisnuc/appifi/internal/nfs"

type GetRequest struct {
	Path string `form:"path"`
}

type FindRequest struct {
	Path  string `form:"path"`
	Name  string `form:"name"`
	Count int    `form:"count" binding:"min=0"`
	// Last is a JSON-encoded nfs.FindCursor.
	Last string `form:"last"`
}

type DeleteRequest struct {
	Path string `form:"path"`
}

type MkdirRequest struct {
	Path   string     `json:"path"`
	Policy nfs.Policy `json:"policy"`
}

type MoveRequest struct {
	OldPath string     `json:"oldPath"`
	NewPath string     `json:"newPath"`
	Policy  nfs.Policy `json:"policy"`
}

type EntryResponse struct {
	Entry    *nfs.EntryDescriptor `json:"entry"`
	Resolved nfs.Resolved         `json:"resolved"`
}
