package utils

import (
	"mime"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// plain text formats that mime.TypeByExtension leaves unknown on most hosts
var textExts = mapset.NewSet(".md", ".log", ".yaml", ".yml", ".toml", ".ini", ".conf", ".srt")

// DetectContentType picks a download content type from a file name alone.
// Unknown extensions fall back to application/octet-stream.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if textExts.Contains(ext) {
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
