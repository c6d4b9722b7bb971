//go:build !linux

package nfs

func renameNoReplace(oldPath, newPath string) error {
	return renameChecked(oldPath, newPath)
}
