package nfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Autoname returns the shortest of name, "name (2)", "name (3)", ... that is
// not in siblings.
func Autoname(name string, siblings []string) string {
	return autoname(name, "", siblings)
}

// AutonameFile is Autoname for regular files: the counter goes before the
// extension, so "a.txt" becomes "a (2).txt".
func AutonameFile(name string, siblings []string) string {
	ext := filepath.Ext(name)
	if ext == name {
		ext = ""
	}
	return autoname(strings.TrimSuffix(name, ext), ext, siblings)
}

func autoname(stem, ext string, siblings []string) string {
	taken := mapset.NewThreadUnsafeSet(siblings...)
	candidate := stem + ext
	for n := 2; taken.Contains(candidate); n++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	return candidate
}

// renameTarget computes a sibling-unique path next to target.
func renameTarget(target string, file bool) (string, error) {
	dir, base := filepath.Split(target)
	siblings, err := readNames(dir)
	if err != nil {
		return "", err
	}
	name := Autoname(base, siblings)
	if file {
		name = AutonameFile(base, siblings)
	}
	return filepath.Join(dir, name), nil
}

func readNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
