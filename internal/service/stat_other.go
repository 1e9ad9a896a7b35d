//go:build !linux

package service

import (
	"os"
	"time"
)

func dirCreatedAt(info os.FileInfo) time.Time {
	return info.ModTime()
}
