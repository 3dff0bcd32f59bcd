//go:build linux

package sink

import (
	"os"

	"golang.org/x/sys/unix"
)

func adviseSequential(f *os.File) {
	// Advisory only; some filesystems reject it.
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
