package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"obstacle-detection-system/pkg/fusion"
)

// FusionConfig параметри злиття з JSON-файлу. Відсутні поля беруться зі
// значень за замовчуванням, тож частковий файл теж коректний.
type FusionConfig struct {
	DistanceThreshold *float64         `json:"distance_threshold,omitempty"`
	AngleThreshold    *float64         `json:"angle_threshold,omitempty"`
	Weights           map[string][]int `json:"weights,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }

// EmptyFusionConfig повертає конфігурацію без жодного заданого поля
func EmptyFusionConfig() *FusionConfig {
	return &FusionConfig{}
}

// DefaultFusionConfig повертає конфігурацію з усіма значеннями за замовчуванням
func DefaultFusionConfig() *FusionConfig {
	weights := make(map[string][]int)
	for sensor, row := range fusion.DefaultWeights() {
		weights[string(sensor)] = append([]int(nil), row[:]...)
	}
	return &FusionConfig{
		DistanceThreshold: ptrFloat64(fusion.DefaultDistanceThreshold),
		AngleThreshold:    ptrFloat64(fusion.DefaultAngleThreshold),
		Weights:           weights,
	}
}

// LoadFusionConfig завантажує параметри злиття з JSON-файлу
func LoadFusionConfig(path string) (*FusionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFusionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate перевіряє задані поля
func (c *FusionConfig) Validate() error {
	if c.DistanceThreshold != nil && *c.DistanceThreshold <= 0 {
		return fmt.Errorf("distance_threshold must be positive, got %f", *c.DistanceThreshold)
	}
	if c.AngleThreshold != nil && *c.AngleThreshold <= 0 {
		return fmt.Errorf("angle_threshold must be positive, got %f", *c.AngleThreshold)
	}
	for name, row := range c.Weights {
		if _, err := fusion.ParseSensorKind(name); err != nil {
			return fmt.Errorf("weights: %w", err)
		}
		if len(row) != fusion.ZoneCount {
			return fmt.Errorf("weights for %s must list %d zones, got %d", name, fusion.ZoneCount, len(row))
		}
		for i, w := range row {
			if w < 0 || w > 100 {
				return fmt.Errorf("weight %d for %s in zone %d outside 0..100", w, name, i+1)
			}
		}
	}
	return nil
}

// GetDistanceThreshold повертає distance_threshold або значення за замовчуванням
func (c *FusionConfig) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return fusion.DefaultDistanceThreshold
	}
	return *c.DistanceThreshold
}

// GetAngleThreshold повертає angle_threshold або значення за замовчуванням
func (c *FusionConfig) GetAngleThreshold() float64 {
	if c.AngleThreshold == nil {
		return fusion.DefaultAngleThreshold
	}
	return *c.AngleThreshold
}

// GetWeights повертає таблицю ваг: рядки з файлу замінюють відповідні рядки за замовчуванням
func (c *FusionConfig) GetWeights() fusion.WeightTable {
	table := fusion.DefaultWeights()
	for name, row := range c.Weights {
		sensor, err := fusion.ParseSensorKind(name)
		if err != nil || len(row) != fusion.ZoneCount {
			continue
		}
		var weights [fusion.ZoneCount]int
		copy(weights[:], row)
		table[sensor] = weights
	}
	return table
}

// ToFusionConfig перетворює файлову конфігурацію на параметри детектора
func (c *FusionConfig) ToFusionConfig() fusion.Config {
	return fusion.Config{
		DistanceThreshold: c.GetDistanceThreshold(),
		AngleThreshold:    c.GetAngleThreshold(),
		Weights:           c.GetWeights(),
	}
}

// ApplyTo накладає задані поля на base; незадані поля лишаються з base
func (c *FusionConfig) ApplyTo(base fusion.Config) fusion.Config {
	out := fusion.Config{
		DistanceThreshold: base.DistanceThreshold,
		AngleThreshold:    base.AngleThreshold,
		Weights:           fusion.DefaultWeights(),
	}
	if base.Weights != nil {
		out.Weights = base.Weights.Clone()
	}
	if c.DistanceThreshold != nil {
		out.DistanceThreshold = *c.DistanceThreshold
	}
	if c.AngleThreshold != nil {
		out.AngleThreshold = *c.AngleThreshold
	}
	for name, row := range c.Weights {
		sensor, err := fusion.ParseSensorKind(name)
		if err != nil || len(row) != fusion.ZoneCount {
			continue
		}
		var weights [fusion.ZoneCount]int
		copy(weights[:], row)
		out.Weights[sensor] = weights
	}
	return out
}
