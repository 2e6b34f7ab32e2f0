// Package geodesy містить сферичні геодезичні примітиви: відстань, азимут
// та пряму геодезичну задачу. Точки задаються як orb.Point (довгота, широта)
// у десяткових градусах.
package geodesy

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius радіус Землі в метрах, спільний для всіх обчислень пакета.
const EarthRadius = 6372795.477598

// Point створює orb.Point з широти та довготи.
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// Distance повертає відстань великого кола між двома точками в метрах.
func Distance(p1, p2 orb.Point) float64 {
	lat1 := deg2rad(p1.Lat())
	lat2 := deg2rad(p2.Lat())
	dLat := lat2 - lat1
	dLon := deg2rad(p2.Lon() - p1.Lon())

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// округлення може дати a трохи більше за 1
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Bearing повертає початковий азимут від from до to в діапазоні [0, 360).
// Для співпадаючих точок повертає 0.
func Bearing(from, to orb.Point) float64 {
	lat1 := deg2rad(from.Lat())
	lat2 := deg2rad(to.Lat())
	dLon := deg2rad(to.Lon() - from.Lon())

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeBearing(rad2deg(math.Atan2(x, y)))
}

// Destination розв'язує пряму геодезичну задачу: точка на відстані distance
// метрів від from за азимутом bearing градусів.
func Destination(from orb.Point, distance, bearing float64) orb.Point {
	lat1 := deg2rad(from.Lat())
	lon1 := deg2rad(from.Lon())
	theta := deg2rad(bearing)
	delta := distance / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return orb.Point{rad2deg(lon2), rad2deg(lat2)}
}

// NormalizeBearing зводить кут у діапазон [0, 360).
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg, 360)
	if b < 0 {
		b += 360
	}
	if b >= 360 {
		b = 0
	}
	return b
}

// RelativeBearing переводить компасний азимут [0, 360) у відносний кут:
// значення від 180 і більше зміщуються на -360.
func RelativeBearing(bearing float64) float64 {
	if bearing >= 180 {
		return bearing - 360
	}
	return bearing
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
