package fusion

import (
	"fmt"
)

// WeightTable вага довіри до сенсора в кожній зоні (0..100)
type WeightTable map[SensorKind][ZoneCount]int

// DefaultWeights таблиця ваг за замовчуванням: камери ближньої дії важать
// більше в ближніх зонах, далекої дії в дальніх, БПЛА скрізь максимально
func DefaultWeights() WeightTable {
	return WeightTable{
		SensorRGB1:       {100, 100, 100, 80, 60, 40, 20},
		SensorRGB4:       {80, 100, 100, 100, 80, 60, 40},
		SensorMonochrome: {60, 80, 100, 100, 100, 80, 60},
		SensorThermal:    {40, 60, 80, 100, 100, 100, 80},
		SensorSWIR:       {10, 20, 40, 60, 80, 100, 100},
		SensorUAV:        {100, 100, 100, 100, 100, 100, 100},
	}
}

// Weight повертає вагу сенсора в зоні
func (w WeightTable) Weight(sensor SensorKind, zone Zone) int {
	if !zone.Valid() {
		return 0
	}
	row, ok := w[sensor]
	if !ok {
		return 0
	}
	return row[zone-1]
}

// Clone повертає незалежну копію таблиці
func (w WeightTable) Clone() WeightTable {
	out := make(WeightTable, len(w))
	for sensor, row := range w {
		out[sensor] = row
	}
	return out
}

// Validate перевіряє, що таблиця містить усі сенсори та ваги в межах 0..100
func (w WeightTable) Validate() error {
	for _, sensor := range SensorKinds {
		if _, ok := w[sensor]; !ok {
			return fmt.Errorf("%w: no weights for sensor %s", ErrInvalidConfig, sensor)
		}
	}
	for sensor, row := range w {
		if !sensor.Valid() {
			return fmt.Errorf("%w: weights for unknown sensor %q", ErrInvalidConfig, sensor)
		}
		for i, weight := range row {
			if weight < 0 || weight > 100 {
				return fmt.Errorf("%w: weight %d for %s in zone %d outside 0..100", ErrInvalidConfig, weight, sensor, i+1)
			}
		}
	}
	return nil
}

const (
	DefaultDistanceThreshold = 20.0
	DefaultAngleThreshold    = 20.0
)

// Config параметри злиття
type Config struct {
	// DistanceThreshold максимальна відстань між дублікатами, м (строго менше)
	DistanceThreshold float64
	// AngleThreshold максимальна різниця відносних азимутів, градуси (строго менше);
	// також ширина кутового кошика при розбитті груп
	AngleThreshold float64
	Weights        WeightTable
}

// DefaultConfig повертає параметри за замовчуванням
func DefaultConfig() Config {
	return Config{
		DistanceThreshold: DefaultDistanceThreshold,
		AngleThreshold:    DefaultAngleThreshold,
		Weights:           DefaultWeights(),
	}
}

// Validate перевіряє параметри злиття
func (c Config) Validate() error {
	if !finite(c.DistanceThreshold) || c.DistanceThreshold <= 0 {
		return fmt.Errorf("%w: distance threshold must be positive, got %v", ErrInvalidConfig, c.DistanceThreshold)
	}
	if !finite(c.AngleThreshold) || c.AngleThreshold <= 0 {
		return fmt.Errorf("%w: angle threshold must be positive, got %v", ErrInvalidConfig, c.AngleThreshold)
	}
	return c.Weights.Validate()
}
