package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simlidar/internal/config"
	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/lidar/storage/sqlite"
	"github.com/banshee-data/simlidar/internal/monitoring"
	"github.com/banshee-data/simlidar/internal/testutil"
)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool { return &v }

func TestRun_SingleFrame(t *testing.T) {
	quietLogs(t)
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Sensor: strPtr("robot_1"), Frame: intPtr(0)}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), ds, cfg, &out))

	got := out.String()
	for _, want := range []string{
		"Dataset keys: [metadata sensors state]",
		"Dataset['sensors'] keys: [robot_1 robot_2]",
		"robot_1 lidar data shape: [6 5 3]",
		"robot_1 lidar data shape (single frame): [5 3]",
		"robot_1 actor ID: 11",
		"Recorded yaw -90.00 corrected by +90°",
		"Sensor rotation: (0.00, 0.00, 0.00)",
		"Sensor location: (0.00, 0.00, 1.00)",
		"First lidar point: (1.00, 0.00, 0.00)",
		"First lidar point rotated and translated: (1.00, 0.00, 1.00)",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "Transformed")
}

func TestRun_RangeIntoDatabase(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "clouds.db")
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{
		Sensor:   strPtr("robot_2"),
		Frame:    intPtr(1),
		RangeTo:  intPtr(5),
		Workers:  intPtr(2),
		DBPath:   strPtr(dbPath),
		PlotPath: strPtr(filepath.Join(dir, "cloud.png")),
		HTMLPath: strPtr(filepath.Join(dir, "cloud.html")),
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), ds, cfg, &out))
	assert.Contains(t, out.String(), "Transformed 4 frames (20 points) into run ")

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewCloudStore(db.DB)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "robot_2", runs[0].Sensor)
	assert.Equal(t, 90.0, runs[0].YawFixDeg)

	n, err := store.CountFrames(runs[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, name := range []string{"cloud.png", "cloud.html"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}
}

func TestRun_NoYawFix(t *testing.T) {
	quietLogs(t)
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Frame: intPtr(0), Sensor: strPtr("robot_1"), ApplyYawFix: boolPtr(false)}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), ds, cfg, &out))
	assert.Contains(t, out.String(), "Sensor rotation: (0.00, -90.00, 0.00)")
	assert.NotContains(t, out.String(), "corrected by")
}

func TestRun_UnknownSensor(t *testing.T) {
	quietLogs(t)
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Frame: intPtr(0), Sensor: strPtr("robot_3")}

	err := run(context.Background(), ds, cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "robot_3"), "got %v", err)
}

func TestRun_OutputDirectoryNamesFiles(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Frame: intPtr(2), Sensor: strPtr("robot_1"), PlotPath: strPtr(dir), HTMLPath: strPtr(dir)}

	require.NoError(t, run(context.Background(), ds, cfg, &bytes.Buffer{}))
	for _, name := range []string{"robot_1_frame_2.png", "robot_1_frame_2.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_RejectsOutputOutsideAllowedDirs(t *testing.T) {
	quietLogs(t)
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Frame: intPtr(0), Sensor: strPtr("robot_1"), PlotPath: strPtr("/nonexistent-simlidar-root/cloud.png")}

	err := run(context.Background(), ds, cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plot output")
}

func TestRun_RejectsDatabaseOutsideAllowedDirs(t *testing.T) {
	quietLogs(t)
	ds := testutil.DefaultRecording().Open(t)
	cfg := &config.RunConfig{Frame: intPtr(0), Sensor: strPtr("robot_1"), DBPath: strPtr("/nonexistent-simlidar-root/clouds.db")}

	err := run(context.Background(), ds, cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database output")
	_, statErr := os.Stat("/nonexistent-simlidar-root")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_NaNPoseStillPersists(t *testing.T) {
	quietLogs(t)
	rec := testutil.DefaultRecording()
	c := rec.Container()
	// robot_1's location x goes missing at frame 3.
	n := len(rec.Actors)
	slot := 3*n + rec.Slot(3, rec.ActorIndex("robot_1"))
	c.Arrays[dataset.StateLocationPath][3*slot] = math.NaN()
	ds, err := dataset.Open(c, dataset.Layout{})
	require.NoError(t, err)
	defer ds.Close()

	dbPath := filepath.Join(t.TempDir(), "clouds.db")
	cfg := &config.RunConfig{Sensor: strPtr("robot_1"), Frame: intPtr(1), RangeTo: intPtr(5), DBPath: strPtr(dbPath)}
	require.NoError(t, run(context.Background(), ds, cfg, &bytes.Buffer{}))

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewCloudStore(db.DB)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	count, err := store.CountFrames(runs[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	fc, err := store.GetFrame(runs[0].RunID, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(fc.Pose.Location.X), "x = %v", fc.Pose.Location.X)
	assert.Equal(t, rec.Actors[0].ID, fc.ActorID)
}
