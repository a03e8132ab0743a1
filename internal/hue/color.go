package hue

import "math"

// defaultWhiteXY is the D65 white point, used for black.
var defaultWhiteXY = [2]float32{0.3127, 0.3290}

// XY converts an sRGB color to CIE 1931 xy coordinates using the wide gamut
// conversion matrix published for Hue lights.
func (c RGB) XY() [2]float32 {
	r := gammaCorrect(float64(c.R) / 255.0)
	g := gammaCorrect(float64(c.G) / 255.0)
	b := gammaCorrect(float64(c.B) / 255.0)

	x := r*0.664511 + g*0.154324 + b*0.162028
	y := r*0.283881 + g*0.668433 + b*0.047685
	z := r*0.000088 + g*0.072310 + b*0.986039

	sum := x + y + z
	if sum == 0 {
		return defaultWhiteXY
	}
	return [2]float32{float32(x / sum), float32(y / sum)}
}

func gammaCorrect(v float64) float64 {
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}
