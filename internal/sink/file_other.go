//go:build !linux

package sink

import "os"

func adviseSequential(*os.File) {}
