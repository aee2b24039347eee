//go:build !unix

package source

import "path/filepath"

type fileIdentity struct {
	dev uint64
	ino uint64
}

// identityOf falls back to the resolved path on platforms without inode
// numbers. Hard-link aliasing is not detected there, only symlink cycles.
func identityOf(path string) (fileIdentity, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fileIdentity{}, err
	}
	return fileIdentity{ino: hashPath(resolved)}, nil
}
