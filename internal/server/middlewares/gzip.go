package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	excludedPaths = []string{
		"/healthz",
	}
	// already compressed, or streamed with byte ranges
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".heic", ".ico",
		".zip", ".tar", ".gz", ".bz2", ".xz", ".rar", ".7z",
		".mp3", ".m4a", ".flac", ".mp4", ".mkv", ".mov", ".avi",
		".woff", ".woff2", ".ttf", ".otf",
		".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".pdf",
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
