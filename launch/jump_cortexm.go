//go:build tinygo && cortexm

package launch

import (
	"device/arm"
	"unsafe"
)

// Jump starts an application whose vector table is at VectorTable: the
// stack pointer and reset handler are taken from its first two words.
type Jump struct {
	VectorTable uintptr
}

func (j Jump) Launch() {
	arm.DisableInterrupts()

	sp := *(*uint32)(unsafe.Pointer(j.VectorTable))
	pc := *(*uint32)(unsafe.Pointer(j.VectorTable + 4))

	arm.SCB.VTOR.Set(uint32(j.VectorTable))
	arm.AsmFull(`
		msr msp, {sp}
		bx {pc}
	`, map[string]interface{}{
		"sp": sp,
		"pc": pc,
	})
	for {
	}
}
