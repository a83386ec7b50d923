package imports

import (
	"math"

	"github.com/sauerbraten-ng/q2pro-ng/internal/vm"
)

// Game/cgame modules are compiled against libm; these bind the float
// subset actually used by the original game code's math calls onto Go's
// math package rather than reimplementing them.
func mathSin(x float64) float64      { return math.Sin(x) }
func mathCos(x float64) float64      { return math.Cos(x) }
func mathSqrt(x float64) float64     { return math.Sqrt(x) }
func mathFloor(x float64) float64    { return math.Floor(x) }
func mathCeil(x float64) float64     { return math.Ceil(x) }
func mathAbs(x float64) float64      { return math.Abs(x) }
func mathAtan2(y, x float64) float64 { return math.Atan2(y, x) }
func mathPow(x, y float64) float64   { return math.Pow(x, y) }

func mathUnaryF32(fn func(float64) float64) vm.ImportThunk {
	return func(mem *vm.Memory, args []vm.Value) vm.Value {
		return vm.F32Val(float32(fn(float64(args[0].F32()))))
	}
}

func mathBinaryF32(fn func(float64, float64) float64) vm.ImportThunk {
	return func(mem *vm.Memory, args []vm.Value) vm.Value {
		return vm.F32Val(float32(fn(float64(args[0].F32()), float64(args[1].F32()))))
	}
}
