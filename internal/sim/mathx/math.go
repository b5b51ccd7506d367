package mathx

import "math"

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// SmoothStep is the cubic Hermite ease used for noise interpolation.
func SmoothStep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// RoundInt rounds half away from zero.
func RoundInt(v float64) int {
	return int(math.Round(v))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps a hash to [0, 1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(uint64(1)<<53)
}

// Signed maps a hash to [-1, 1).
func Signed(h uint64) float64 {
	return Unit(h)*2 - 1
}

// DeriveSeed mixes a salt into a seed so independent passes do not share streams.
func DeriveSeed(seed int64, salt uint64) int64 {
	return int64(mix64(uint64(seed) ^ (salt * 0xd6e8feb86659fd93)))
}
