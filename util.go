package main

import (
	"fmt"
	"math"
	"math/rand"
)

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// Normalize scales (dx, dy) to a unit vector. The zero vector (and any
// non-finite input) stays zero.
func Normalize(dx, dy float64) (float64, float64) {
	if math.IsNaN(dx) || math.IsInf(dx, 0) || math.IsNaN(dy) || math.IsInf(dy, 0) {
		return 0, 0
	}
	mag := math.Sqrt(dx*dx + dy*dy)
	if mag == 0 {
		return 0, 0
	}
	return dx / mag, dy / mag
}

// RandomColor returns a cosmetic color like "#a3f27b"
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.Intn(0x1000000))
}

// RandomSpawn returns a coordinate in [margin, dim-margin]
func RandomSpawn(dim, margin float64) float64 {
	return margin + rand.Float64()*(dim-2*margin)
}
