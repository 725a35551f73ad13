package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/simlidar/internal/config"
	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/lidar"
	"github.com/banshee-data/simlidar/internal/lidar/pipeline"
	"github.com/banshee-data/simlidar/internal/lidar/render"
	"github.com/banshee-data/simlidar/internal/lidar/storage/sqlite"
	"github.com/banshee-data/simlidar/internal/monitoring"
	"github.com/banshee-data/simlidar/internal/security"
)

// run walks the recording the way the dataset is meant to be explored, then
// transforms the configured frames. All printing happens here.
func run(ctx context.Context, ds *dataset.Dataset, cfg *config.RunConfig, w io.Writer) error {
	sensor := cfg.GetSensor()
	from, to := cfg.GetFrame(), cfg.GetRangeTo()

	if err := describe(ds, sensor, w); err != nil {
		return err
	}

	ft := pipeline.NewFrameTransformer(ds)
	ft.ApplyYawFix = cfg.GetApplyYawFix()

	first, err := ft.TransformFrame(sensor, from)
	if err != nil {
		return err
	}
	reportFrame(first, ft.ApplyYawFix, w)

	if err := renderOutputs(cfg, first); err != nil {
		return err
	}

	if cfg.GetDBPath() == "" && to-from <= 1 {
		return nil
	}

	var store *sqlite.CloudStore
	var runID string
	if path := cfg.GetDBPath(); path != "" {
		if err := security.ValidateOutputPath(path); err != nil {
			return fmt.Errorf("database output: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		store = sqlite.NewCloudStore(db.DB)
		tr := &sqlite.TransformRun{
			DatasetPath: cfg.GetDatasetPath(),
			Sensor:      sensor,
			FrameFrom:   from,
			FrameTo:     to,
		}
		if ft.ApplyYawFix {
			tr.YawFixDeg = lidar.RecordedYawOffsetDeg
		}
		if err := store.InsertRun(tr); err != nil {
			return err
		}
		runID = tr.RunID
		monitoring.Logf("storing frames [%d, %d) as run %s", from, to, runID)
	}

	total := 0
	err = ft.TransformRange(ctx, sensor, from, to, cfg.GetWorkers(), func(res *pipeline.FrameResult) error {
		total += len(res.World)
		if store == nil {
			return nil
		}
		return store.InsertFrame(&sqlite.FrameCloud{
			RunID:   runID,
			Frame:   res.Frame,
			ActorID: res.ActorID,
			Pose:    res.Pose,
			Points:  res.World,
		})
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Transformed %d frames (%d points)", to-from, total)
	if runID != "" {
		fmt.Fprintf(w, " into run %s", runID)
	}
	fmt.Fprintln(w)
	return nil
}

func describe(ds *dataset.Dataset, sensor string, w io.Writer) error {
	keys, err := ds.Keys("")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Dataset keys: %v\n", keys)
	fmt.Fprintf(w, "Dataset['%s'] keys: %v\n", dataset.SensorsGroup, ds.Sensors())

	shape, err := ds.SensorShape(sensor)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s lidar data shape: %v\n", sensor, shape)
	fmt.Fprintf(w, "%s lidar data shape (single frame): %v\n", sensor, shape[1:])

	id, err := ds.Metadata().ActorID(sensor)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s actor ID: %d\n", sensor, id)
	return nil
}

func reportFrame(res *pipeline.FrameResult, yawFixed bool, w io.Writer) {
	rot, loc := res.Pose.Rotation, res.Pose.Location
	fmt.Fprintf(w, "Frame %d\n", res.Frame)
	if yawFixed {
		fmt.Fprintf(w, "Recorded yaw %.2f corrected by %+.0f°\n", res.RecordedPose.Rotation.Yaw, lidar.RecordedYawOffsetDeg)
	}
	fmt.Fprintf(w, "Sensor rotation: (%.2f, %.2f, %.2f)\n", rot.Pitch, rot.Yaw, rot.Roll)
	fmt.Fprintf(w, "Sensor location: (%.2f, %.2f, %.2f)\n", loc.X, loc.Y, loc.Z)
	for _, issue := range res.PoseIssues {
		fmt.Fprintf(w, "Pose note: %s\n", issue)
	}
	fmt.Fprintf(w, "Lidar data points: %d\n", len(res.Local))

	if len(res.Local) > 0 {
		p := res.Local[0]
		rotated := lidar.RotatePoint(rot, p)
		translated := res.World[0]
		fmt.Fprintf(w, "First lidar point: (%.2f, %.2f, %.2f)\n", p.X, p.Y, p.Z)
		fmt.Fprintf(w, "First lidar point rotated: (%.2f, %.2f, %.2f)\n", rotated.X, rotated.Y, rotated.Z)
		fmt.Fprintf(w, "First lidar point rotated and translated: (%.2f, %.2f, %.2f)\n", translated.X, translated.Y, translated.Z)
	}
}

func renderOutputs(cfg *config.RunConfig, res *pipeline.FrameResult) error {
	title := fmt.Sprintf("%s frame %d", res.Sensor, res.Frame)
	series := []render.Series{
		{Name: "local", Points: res.Local},
		{Name: "world", Points: res.World},
	}

	if path := cfg.GetPlotPath(); path != "" {
		path = security.OutputFile(path, title, ".png")
		if err := security.ValidateOutputPath(path); err != nil {
			return fmt.Errorf("plot output: %w", err)
		}
		if err := render.SavePNG(path, title, series...); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", path)
	}

	if path := cfg.GetHTMLPath(); path != "" {
		path = security.OutputFile(path, title, ".html")
		if err := security.ValidateOutputPath(path); err != nil {
			return fmt.Errorf("html output: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := render.RenderHTML(f, title, cfg.GetHTMLMaxPoints(), series...); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", path)
	}
	return nil
}
