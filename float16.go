package maskflow

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// every half precision bit pattern maps to one float32, build the table
	// once so engine outputs in FP16 convert with a single index
	for i := range f16LookupTable {
		f16LookupTable[i] = float16.Frombits(uint16(i)).Float32()
	}
}

// Float16Bits converts float32 values to half precision bits, used when an
// engine expects FP16 inputs
func Float16Bits(data []float32) []uint16 {
	out := make([]uint16, len(data))

	for i, v := range data {
		out[i] = float16.Fromfloat32(v).Bits()
	}

	return out
}
