package nfs

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxNameBytes = 255

var (
	reIllegalChars  = regexp.MustCompile(`[/\?<>\\:\*\|"]`)
	reControlChars  = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
	reReservedDots  = regexp.MustCompile(`^\.+$`)
	reWindowsDevice = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	reTrailingDots  = regexp.MustCompile(`[\. ]+$`)
)

// Sanitize strips characters and forms that are unsafe as a single path
// segment on any of the filesystems a drive may carry (ext4, NTFS, vfat).
func Sanitize(name string) string {
	s := reIllegalChars.ReplaceAllString(name, "")
	s = reControlChars.ReplaceAllString(s, "")
	s = reReservedDots.ReplaceAllString(s, "")
	s = reWindowsDevice.ReplaceAllString(s, "")
	s = reTrailingDots.ReplaceAllString(s, "")
	return truncateUTF8(s, maxNameBytes)
}

// IsValidName reports whether name is a non-empty segment that survives
// Sanitize unchanged.
func IsValidName(name string) bool {
	return name != "" && utf8.ValidString(name) && Sanitize(name) == name
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// splitRelPath validates a slash-delimited relative path and returns its
// segments. An empty path yields no segments.
func splitRelPath(rel string) ([]string, bool) {
	if rel == "" {
		return nil, true
	}
	segs := strings.Split(rel, "/")
	for _, seg := range segs {
		if !IsValidName(seg) {
			return nil, false
		}
	}
	return segs, true
}
