// Command simlidar reads a recorded multi-robot simulation and moves a
// sensor's lidar cloud from sensor-local space into world space.
//
// It prints what it finds along the way (dataset groups, shapes, the
// actor's corrected pose, the first point before and after transform) and
// can persist world clouds to SQLite and render them as PNG or HTML.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/simlidar/internal/config"
	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/monitoring"
	"github.com/banshee-data/simlidar/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON run config (see config/simlidar.defaults.json)")
	dataPath    = flag.String("data", "", "HDF5 recording to read")
	sensor      = flag.String("sensor", "", "Sensor (and metadata actor) name, e.g. robot_1")
	frame       = flag.Int("frame", 0, "Frame to transform")
	rangeTo     = flag.Int("range-to", 0, "Exclusive end frame; transforms [frame, range-to) when set")
	workers     = flag.Int("workers", 0, "Concurrent frames when transforming a range")
	noYawFix    = flag.Bool("no-yaw-fix", false, "Do not add the +90° recorded-yaw correction")
	actors      = flag.Int("actors", 0, "Actors per frame (default: inferred from metadata)")
	points      = flag.Int("points", 0, "Points per frame (default: inferred from sensor data)")
	dbPath      = flag.String("db", "", "SQLite database to store world clouds in")
	plotPath    = flag.String("png", "", "Write a top-down plot of the first frame to this file")
	htmlPath    = flag.String("html", "", "Write an interactive chart of the first frame to this file")
	quiet       = flag.Bool("quiet", false, "Suppress diagnostic logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// flagOverrides returns a config holding only the flags set on the command line.
func flagOverrides() *config.RunConfig {
	o := config.EmptyRunConfig()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			o.DatasetPath = dataPath
		case "sensor":
			o.Sensor = sensor
		case "frame":
			o.Frame = frame
		case "range-to":
			o.RangeTo = rangeTo
		case "workers":
			o.Workers = workers
		case "no-yaw-fix":
			v := !*noYawFix
			o.ApplyYawFix = &v
		case "actors":
			o.ActorsPerFrame = actors
		case "points":
			o.PointsPerFrame = points
		case "db":
			o.DBPath = dbPath
		case "png":
			o.PlotPath = plotPath
		case "html":
			o.HTMLPath = htmlPath
		}
	})
	return o
}

func loadConfig() (*config.RunConfig, error) {
	cfg := config.EmptyRunConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadRunConfig(*configPath); err != nil {
			return nil, err
		}
	}
	cfg.Merge(flagOverrides())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ds, err := dataset.OpenFile(cfg.GetDatasetPath(), dataset.Layout{
		ActorsPerFrame: cfg.GetActorsPerFrame(),
		PointsPerFrame: cfg.GetPointsPerFrame(),
	})
	if err != nil {
		log.Fatalf("open dataset: %v", err)
	}
	defer ds.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, ds, cfg, os.Stdout); err != nil {
		ds.Close()
		log.Fatalf("simlidar: %v", err)
	}
}
