//go:build arm64

package hwy

import "golang.org/x/sys/cpu"

func init() {
	switch {
	case NoSimdEnv():
		use(DispatchScalar)
	case cpu.ARM64.HasSVE:
		use(DispatchSVE)
	case cpu.ARM64.HasASIMD:
		use(DispatchNEON)
	default:
		use(DispatchScalar)
	}
}
