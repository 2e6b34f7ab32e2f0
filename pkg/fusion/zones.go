package fusion

import (
	"math"
)

// Zone смуга відстані від транспортного засобу (1..7)
type Zone int

// ZoneCount кількість зон
const ZoneCount = 7

type zoneBand struct {
	low, high float64
	zone      Zone
}

// zoneBands межі зон у метрах, нижня межа включна, верхня виключна
var zoneBands = [ZoneCount]zoneBand{
	{0, 50, 1},
	{50, 100, 2},
	{100, 150, 3},
	{150, 200, 4},
	{200, 250, 5},
	{250, 400, 6},
	{400, math.Inf(1), 7},
}

// ZoneFor повертає зону для відстані в метрах.
// Для від'ємної відстані чи NaN повертає 0.
func ZoneFor(distance float64) Zone {
	for _, band := range zoneBands {
		if band.low <= distance && distance < band.high {
			return band.zone
		}
	}
	return 0
}

// Valid повідомляє, чи є зона однією з 1..ZoneCount
func (z Zone) Valid() bool {
	return z >= 1 && z <= ZoneCount
}

// Bounds повертає межі зони в метрах
func (z Zone) Bounds() (low, high float64) {
	if !z.Valid() {
		return math.NaN(), math.NaN()
	}
	band := zoneBands[z-1]
	return band.low, band.high
}

// ZoneSet виявлення, розкладені по зонах, у порядку надходження
type ZoneSet [ZoneCount][]NormalizedDetection

// Partition розкладає виявлення по зонах і проставляє кожному номер зони
func Partition(dets []NormalizedDetection) (ZoneSet, error) {
	var zones ZoneSet
	for i, det := range dets {
		zone := ZoneFor(det.Distance)
		if !zone.Valid() {
			return ZoneSet{}, &DetectionError{Sensor: det.Sensor, Index: i, Err: malformed("distance %v has no zone", det.Distance)}
		}
		det.Zone = zone
		zones[zone-1] = append(zones[zone-1], det)
	}
	return zones, nil
}

// Zone повертає виявлення зони z
func (zs *ZoneSet) Zone(z Zone) []NormalizedDetection {
	if !z.Valid() {
		return nil
	}
	return zs[z-1]
}

// All повертає всі виявлення у порядку зростання зон
func (zs *ZoneSet) All() []NormalizedDetection {
	var all []NormalizedDetection
	for _, dets := range zs {
		all = append(all, dets...)
	}
	return all
}
