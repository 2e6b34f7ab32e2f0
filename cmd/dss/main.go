// Команда dss зливає виявлення перешкод від шести бортових сенсорів
// і записує результати у JSON-файл.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/config"
	"obstacle-detection-system/internal/infrastructure/migrations"
	"obstacle-detection-system/internal/infrastructure/repositories"
	"obstacle-detection-system/pkg/fusion"
	"obstacle-detection-system/pkg/geodesy"
)

// skipPath замість шляху означає, що набору для сенсора немає
const skipPath = "-"

// sensorArgs порядок позиційних аргументів з файлами сенсорів
var sensorArgs = []fusion.SensorKind{
	fusion.SensorRGB1,
	fusion.SensorRGB4,
	fusion.SensorMonochrome,
	fusion.SensorThermal,
	fusion.SensorSWIR,
	fusion.SensorUAV,
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Create a list of obstacle detections and their estimated coordinates.

Usage: %s [flags] rgb1.json rgb4.json monochrome.json thermal.json swir.json uav.json "lat, lon" "lat, lon"

The last two arguments are the current and previous vehicle position,
e.g. "53.0861622, 8.7816742". Use "-" in place of a file for a missing sensor.

Flags:
`, filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	var (
		verbose     = flag.Bool("verbose", false, "Log zones, candidate groups and merges")
		mapPath     = flag.String("map", "", "Write estimations and results as GeoJSON to this file")
		outputPath  = flag.String("output", filepath.Join(".", "dss_results.json"), "Output file")
		configPath  = flag.String("config", "", "Fusion tuning JSON file")
		archivePath = flag.String("archive", "", "SQLite file to archive the run in")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != len(sensorArgs)+2 {
		usage()
		os.Exit(2)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, flag.Args(), *outputPath, *mapPath, *configPath, *archivePath); err != nil {
		logger.Error("dss failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func run(logger *zap.Logger, args []string, outputPath, mapPath, configPath, archivePath string) error {
	ctx := context.Background()

	cfg := fusion.DefaultConfig()
	if configPath != "" {
		fc, err := config.LoadFusionConfig(configPath)
		if err != nil {
			return err
		}
		cfg = fc.ToFusionConfig()
	}

	in, err := readInput(args)
	if err != nil {
		return err
	}

	service, closeArchive, err := newFusionService(archivePath, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	res, err := service.Run(ctx, in, nil)
	if err != nil {
		return err
	}

	if err := writeJSON(outputPath, nonNil(res.Report.Results)); err != nil {
		return err
	}
	logger.Info("results written",
		zap.String("file", outputPath),
		zap.Int("results", len(res.Report.Results)),
		zap.String("run_id", res.Run.ID.String()),
	)

	if mapPath != "" {
		data, err := res.Report.FeatureCollection().MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode map: %w", err)
		}
		if err := os.WriteFile(mapPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write map: %w", err)
		}
		logger.Info("map written", zap.String("file", mapPath))
	}

	return nil
}

// readInput читає файли сенсорів і положення транспортного засобу з аргументів
func readInput(args []string) (fusion.Input, error) {
	current, err := parsePoint(args[len(sensorArgs)])
	if err != nil {
		return fusion.Input{}, err
	}
	previous, err := parsePoint(args[len(sensorArgs)+1])
	if err != nil {
		return fusion.Input{}, err
	}

	in := fusion.Input{Pose: fusion.VehiclePose{Current: current, Previous: previous}}
	for i, kind := range sensorArgs {
		if args[i] == skipPath {
			continue
		}
		if err := decodeFile(&in, kind, args[i]); err != nil {
			return fusion.Input{}, err
		}
	}
	return in, nil
}

func decodeFile(in *fusion.Input, kind fusion.SensorKind, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s data: %w", kind, err)
	}
	defer f.Close()

	if err := in.DecodeSet(kind, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func parsePoint(s string) (orb.Point, error) {
	lat, lon, err := fusion.ParsePosition(s)
	if err != nil {
		return orb.Point{}, err
	}
	return geodesy.Point(lat, lon), nil
}

// newFusionService створює сервіс з архівом у SQLite або в пам'яті
func newFusionService(archivePath string, cfg fusion.Config, logger *zap.Logger) (*application.FusionService, func(), error) {
	opts := []application.FusionServiceOption{
		application.WithFusionConfig(cfg),
		application.WithServiceLogger(logger),
	}

	if archivePath == "" {
		return application.NewFusionService(
			repositories.NewMemoryFusionRunRepository(),
			repositories.NewMemoryFusedObjectRepository(),
			repositories.NewMemoryDetectionRepository(),
			opts...,
		), func() {}, nil
	}

	db, err := sql.Open("sqlite", archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := migrations.Up(db, migrations.SQLite, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	service := application.NewFusionService(
		repositories.NewSQLiteFusionRunRepository(db),
		repositories.NewSQLiteFusedObjectRepository(db),
		repositories.NewSQLiteDetectionRepository(db),
		opts...,
	)
	return service, func() { db.Close() }, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func nonNil(results []fusion.FusedDetection) []fusion.FusedDetection {
	if results == nil {
		return []fusion.FusedDetection{}
	}
	return results
}
