package fusion

import (
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"obstacle-detection-system/pkg/geodesy"
)

// Detector реалізує злиття виявлень з різних сенсорів
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// Option налаштовує Detector
type Option func(*Detector)

// WithLogger задає журнал для діагностичних повідомлень злиття
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector створює новий екземпляр Detector
func NewDetector(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg: Config{
			DistanceThreshold: cfg.DistanceThreshold,
			AngleThreshold:    cfg.AngleThreshold,
			Weights:           cfg.Weights.Clone(),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config повертає параметри детектора
func (d *Detector) Config() Config {
	return d.cfg
}

// Report повний результат запуску: нормалізовані виявлення з зонами та результати злиття
type Report struct {
	Pose       VehiclePose
	Detections []NormalizedDetection
	Results    []FusedDetection
}

// Fuse виконує злиття з параметрами cfg
func Fuse(in Input, cfg Config) ([]FusedDetection, error) {
	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	return d.Fuse(in)
}

// Fuse повертає лише список результатів злиття
func (d *Detector) Fuse(in Input) ([]FusedDetection, error) {
	report, err := d.Run(in)
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}

// Run нормалізує виявлення, розкладає їх по зонах і зливає дублікати в кожній зоні
func (d *Detector) Run(in Input) (*Report, error) {
	detections, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	zones, err := Partition(detections)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Pose:       in.Pose,
		Detections: zones.All(),
	}
	for z := Zone(1); z <= ZoneCount; z++ {
		report.Results = append(report.Results, d.fuseZone(z, zones.Zone(z))...)
	}

	d.logger.Debug("fusion complete",
		zap.Int("detections", len(report.Detections)),
		zap.Int("results", len(report.Results)),
	)
	return report, nil
}

// classGroup виявлення одного класу, що мають хоча б одного дубліката
type classGroup struct {
	class   ObjectClass
	members []int
}

// zoneMatch розбиття знімка зони на згруповані та поодинокі виявлення (індекси знімка)
type zoneMatch struct {
	groups    []classGroup
	unmatched []int
}

// fuseZone зливає дублікати всередині однієї зони
func (d *Detector) fuseZone(zone Zone, dets []NormalizedDetection) []FusedDetection {
	if len(dets) == 0 {
		return nil
	}
	for _, det := range dets {
		d.logger.Debug("zone detection",
			zap.Int("zone", int(zone)),
			zap.String("sensor", string(det.Sensor)),
			zap.String("class", string(det.ObjectClass)),
			zap.Float64("lat", det.Coordinate.Lat()),
			zap.Float64("lon", det.Coordinate.Lon()),
			zap.Float64("distance", det.Distance),
			zap.Float64("relative_bearing", det.RelativeBearing),
		)
	}

	match := d.matchZone(dets)
	if len(match.groups) == 0 {
		d.logger.Debug("no similar detections", zap.Int("zone", int(zone)))
	}

	var results []FusedDetection
	for _, group := range match.groups {
		for _, bin := range d.binByAngle(dets, group.members) {
			fused := d.average(zone, dets, bin)
			d.logger.Debug("merged detections",
				zap.Int("zone", int(zone)),
				zap.String("class", string(fused.ObjectClass)),
				zap.Int("members", fused.Members),
				zap.Float64("lat", fused.Lat()),
				zap.Float64("lon", fused.Lon()),
			)
			results = append(results, fused)
		}
	}

	for _, i := range match.unmatched {
		det := dets[i]
		results = append(results, FusedDetection{
			ObjectClass: det.ObjectClass,
			Coordinate:  det.Coordinate,
			Zone:        zone,
			Sensors:     []SensorKind{det.Sensor},
			Members:     1,
		})
	}
	return results
}

// isCandidatePair перевіряє, чи можуть два виявлення бути одним об'єктом
func (d *Detector) isCandidatePair(a, b NormalizedDetection) bool {
	if a.Sensor == b.Sensor || a.ObjectClass != b.ObjectClass {
		return false
	}
	if geodesy.Distance(a.Coordinate, b.Coordinate) >= d.cfg.DistanceThreshold {
		return false
	}
	return math.Abs(a.RelativeBearing-b.RelativeBearing) < d.cfg.AngleThreshold
}

// matchZone перебирає всі пари знімка зони. Виявлення, що входить хоча б
// в одну пару-кандидат, потрапляє до групи свого класу (один раз), тому
// ланцюжок A–B, B–C об'єднує A, B та C навіть якщо A і C далеко одне від одного.
func (d *Detector) matchZone(dets []NormalizedDetection) zoneMatch {
	claimed := make([]bool, len(dets))
	groupIndex := make(map[ObjectClass]int)
	var match zoneMatch

	claim := func(class ObjectClass, i int) {
		if claimed[i] {
			return
		}
		claimed[i] = true
		gi, ok := groupIndex[class]
		if !ok {
			gi = len(match.groups)
			groupIndex[class] = gi
			match.groups = append(match.groups, classGroup{class: class})
		}
		match.groups[gi].members = append(match.groups[gi].members, i)
	}

	for i := 0; i < len(dets); i++ {
		for j := i + 1; j < len(dets); j++ {
			if d.isCandidatePair(dets[i], dets[j]) {
				claim(dets[i].ObjectClass, i)
				claim(dets[j].ObjectClass, j)
			}
		}
	}

	for i := range dets {
		if !claimed[i] {
			match.unmatched = append(match.unmatched, i)
		}
	}
	return match
}

// binByAngle ділить групу одного класу на кошики шириною AngleThreshold,
// починаючи від найменшого відносного азимуту групи. Кількість кошиків
// ceil(розмах / поріг), але не менше одного; останній кошик закритий справа.
func (d *Detector) binByAngle(dets []NormalizedDetection, members []int) [][]int {
	minBearing, maxBearing := math.Inf(1), math.Inf(-1)
	for _, i := range members {
		minBearing = math.Min(minBearing, dets[i].RelativeBearing)
		maxBearing = math.Max(maxBearing, dets[i].RelativeBearing)
	}

	width := d.cfg.AngleThreshold
	count := int(math.Ceil((maxBearing - minBearing) / width))
	if count < 1 {
		count = 1
	}

	bins := make([][]int, count)
	for _, i := range members {
		k := int(math.Floor((dets[i].RelativeBearing - minBearing) / width))
		if k >= count {
			k = count - 1
		}
		bins[k] = append(bins[k], i)
	}

	nonEmpty := bins[:0]
	for _, bin := range bins {
		if len(bin) > 0 {
			nonEmpty = append(nonEmpty, bin)
		}
	}
	return nonEmpty
}

// average обчислює зважене середнє координат кошика.
// Якщо сума ваг нульова, використовується просте середнє.
func (d *Detector) average(zone Zone, dets []NormalizedDetection, members []int) FusedDetection {
	lats := make([]float64, len(members))
	lons := make([]float64, len(members))
	weights := make([]float64, len(members))
	var total float64
	var sensors []SensorKind
	seen := make(map[SensorKind]bool)

	for k, i := range members {
		det := dets[i]
		lats[k] = det.Coordinate.Lat()
		lons[k] = det.Coordinate.Lon()
		weights[k] = float64(d.cfg.Weights.Weight(det.Sensor, zone))
		total += weights[k]
		if !seen[det.Sensor] {
			seen[det.Sensor] = true
			sensors = append(sensors, det.Sensor)
		}
	}
	if total == 0 {
		weights = nil
	}

	return FusedDetection{
		ObjectClass: dets[members[0]].ObjectClass,
		Coordinate:  orb.Point{stat.Mean(lons, weights), stat.Mean(lats, weights)},
		Zone:        zone,
		Sensors:     sensors,
		Members:     len(members),
	}
}
