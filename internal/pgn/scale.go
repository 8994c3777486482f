package pgn

import (
	"encoding/binary"
	"math"
)

// scaled fields saturate instead of wrapping

func i16(v, scale float64) int16 {
	r := math.Round(v * scale)
	switch {
	case math.IsNaN(r):
		return 0
	case r > math.MaxInt16:
		return math.MaxInt16
	case r < math.MinInt16:
		return math.MinInt16
	}
	return int16(r)
}

func u16(v, scale float64) uint16 {
	r := math.Round(v * scale)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(r)
}

func u8(v, scale float64) uint8 {
	r := math.Round(v * scale)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(r)
}

func putI16(b []byte, v int16) {
	binary.LittleEndian.PutUint16(b, uint16(v))
}

func getI16(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

func flags(bits ...bool) byte {
	var f byte
	for i, set := range bits {
		if set {
			f |= 1 << i
		}
	}
	return f
}

func bit(f byte, i int) bool {
	return f&(1<<i) != 0
}
