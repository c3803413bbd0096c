//go:build !windows

package localfs

import (
	"os"
	"syscall"
)

func init() {
	statOwner = func(info os.FileInfo) *ownerInfo {
		stat, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return nil
		}
		return &ownerInfo{uid: stat.Uid, gid: stat.Gid}
	}
}
