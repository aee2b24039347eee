//go:build unix

package source

import (
	"os"
	"syscall"
)

// fileIdentity distinguishes directories independent of the path used to
// reach them, so symlinked directories are visited once.
type fileIdentity struct {
	dev uint64
	ino uint64
}

func identityOf(path string) (fileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileIdentity{}, err
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}, nil
	}
	return fileIdentity{ino: hashPath(path)}, nil
}
