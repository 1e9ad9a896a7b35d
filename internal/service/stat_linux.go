//go:build linux

package service

import (
	"os"
	"syscall"
	"time"
)

// dirCreatedAt reads the directory's inode change time, the closest stable
// approximation of creation time Linux exposes without statx. Falls back to
// the modification time for non-native file infos.
func dirCreatedAt(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
