package buf

import "math"

// convertSample converts a PCM sample from one representation to another,
// normalizing through a signed full-scale float so that signed, unsigned
// and floating sample types round-trip consistently (the same conversion
// an audio HAL performs when bridging between a codec's native sample
// type and a device's native sample type).
func convertSample[S, D Sample](v S) D {
	return fromUnit[D](toUnit(v))
}

// toUnit maps a sample to the range [-1, 1].
func toUnit[T Sample](v T) float64 {
	switch x := any(v).(type) {
	case uint8:
		return (float64(x) - 128) / 128
	case int8:
		return float64(x) / 128
	case uint16:
		return (float64(x) - 32768) / 32768
	case int16:
		return float64(x) / 32768
	case uint32:
		return (float64(x) - 2147483648) / 2147483648
	case int32:
		return float64(x) / 2147483648
	case uint64:
		return (float64(x) - 9223372036854775808) / 9223372036854775808
	case int64:
		return float64(x) / 9223372036854775808
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

// fromUnit maps a value in [-1, 1] back to T's native range, clamping
// against T's limits.
func fromUnit[T Sample](f float64) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(clampFloat(f*128+128, 0, 255))
	case int8:
		return T(clampFloat(f*128, -128, 127))
	case uint16:
		return T(clampFloat(f*32768+32768, 0, 65535))
	case int16:
		return T(clampFloat(f*32768, -32768, 32767))
	case uint32:
		return T(clampFloat(f*2147483648+2147483648, 0, 4294967295))
	case int32:
		return T(clampFloat(f*2147483648, -2147483648, 2147483647))
	case uint64:
		return T(clampFloat(f*9223372036854775808+9223372036854775808, 0, math.MaxUint64))
	case int64:
		return T(clampFloat(f*9223372036854775808, -9223372036854775808, 9223372036854775807))
	case float32:
		return T(float32(clampFloat(f, -1, 1)))
	case float64:
		return T(clampFloat(f, -1, 1))
	default:
		return zero
	}
}

func clampFloat(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
