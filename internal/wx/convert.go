package wx

import "math"

const (
	kmPerMile     = 1.609344
	nmPerMile     = 0.8689762419
	milesPerMeter = 0.000621371
	inHgPerHPa    = 0.029529
)

// CToF converts Celsius to Fahrenheit, rounded to the nearest degree.
func CToF(c float64) int {
	return int(math.Round(c*9/5 + 32))
}

// MilesToKm converts statute miles to kilometres.
func MilesToKm(mi float64) float64 { return mi * kmPerMile }

// MilesToNM converts statute miles to nautical miles.
func MilesToNM(mi float64) float64 { return mi * nmPerMile }

// MetersToMiles converts metres to statute miles.
func MetersToMiles(m float64) float64 { return m * milesPerMeter }

// HPaToInHg converts a QNH in hectopascals to inches of mercury.
func HPaToInHg(hpa float64) float64 { return Round2(hpa * inHgPerHPa) }

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
