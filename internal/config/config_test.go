package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyRunConfig_Defaults(t *testing.T) {
	cfg := EmptyRunConfig()

	assert.Equal(t, "robots-4/points-per-frame-1000.hdf5", cfg.GetDatasetPath())
	assert.Equal(t, "robot_1", cfg.GetSensor())
	assert.Equal(t, 680, cfg.GetFrame())
	assert.Equal(t, 681, cfg.GetRangeTo())
	assert.True(t, cfg.GetApplyYawFix())
	assert.Equal(t, 4, cfg.GetWorkers())
	assert.Zero(t, cfg.GetActorsPerFrame())
	assert.Zero(t, cfg.GetPointsPerFrame())
	assert.Empty(t, cfg.GetDBPath())
	assert.Empty(t, cfg.GetPlotPath())
	assert.Empty(t, cfg.GetHTMLPath())
	assert.Equal(t, 8000, cfg.GetHTMLMaxPoints())
	assert.NoError(t, cfg.Validate())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	def := EmptyRunConfig()

	// The defaults file and the getters must agree.
	assert.Equal(t, def.GetDatasetPath(), cfg.GetDatasetPath())
	assert.Equal(t, def.GetSensor(), cfg.GetSensor())
	assert.Equal(t, def.GetFrame(), cfg.GetFrame())
	assert.Equal(t, def.GetApplyYawFix(), cfg.GetApplyYawFix())
	assert.Equal(t, def.GetWorkers(), cfg.GetWorkers())
	assert.Equal(t, def.GetHTMLMaxPoints(), cfg.GetHTMLMaxPoints())
}

func TestLoadRunConfig_Partial(t *testing.T) {
	path := writeConfig(t, "run.json", `{"sensor": "robot_3", "frame": 10, "range_to": 20, "apply_yaw_fix": false}`)

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "robot_3", cfg.GetSensor())
	assert.Equal(t, 10, cfg.GetFrame())
	assert.Equal(t, 20, cfg.GetRangeTo())
	assert.False(t, cfg.GetApplyYawFix())
	assert.Equal(t, 4, cfg.GetWorkers(), "omitted fields keep defaults")
}

func TestLoadRunConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{name: "extension", file: "run.yaml", body: `{}`, wantErr: ".json extension"},
		{name: "bad json", file: "run.json", body: `{"frame": }`, wantErr: "parse config JSON"},
		{name: "negative frame", file: "run.json", body: `{"frame": -1}`, wantErr: "frame must be non-negative"},
		{name: "negative range end", file: "run.json", body: `{"range_to": -1}`, wantErr: "range_to"},
		{name: "zero workers", file: "run.json", body: `{"workers": 0}`, wantErr: "workers"},
		{name: "blank sensor", file: "run.json", body: `{"sensor": "  "}`, wantErr: "sensor"},
		{name: "negative points", file: "run.json", body: `{"points_per_frame": -3}`, wantErr: "points_per_frame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRunConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRunConfig_DefersRangeCheckUntilMerged(t *testing.T) {
	// range_to 10 is before the default frame 680 until the override lands.
	path := writeConfig(t, "run.json", `{"range_to": 10}`)

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Merge(&RunConfig{Frame: ptrInt(0)})
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.GetFrame())
	assert.Equal(t, 10, cfg.GetRangeTo())
}

func TestValidate_Merged(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RunConfig
		wantErr string
	}{
		{name: "range before frame", cfg: &RunConfig{Frame: ptrInt(10), RangeTo: ptrInt(5)}, wantErr: "range_to"},
		{name: "range before default frame", cfg: &RunConfig{RangeTo: ptrInt(10)}, wantErr: "range_to"},
		{name: "plot dir missing", cfg: &RunConfig{PlotPath: ptrString("/nonexistent-dir-xyz/cloud.png")}, wantErr: "plot_path"},
		{name: "html dir missing", cfg: &RunConfig{HTMLPath: ptrString("/nonexistent-dir-xyz/cloud.html")}, wantErr: "html_path"},
		{name: "field check still applies", cfg: &RunConfig{Workers: ptrInt(0)}, wantErr: "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.wantErr)
		})
	}

	html := &RunConfig{HTMLMaxPoints: ptrInt(0)}
	require.NoError(t, html.Validate())
	assert.Zero(t, html.GetHTMLMaxPoints(), "explicit 0 disables downsampling")
}

func TestLoadRunConfig_KeepsOutputPathsForLaterCheck(t *testing.T) {
	path := writeConfig(t, "run.json", `{"plot_path": "/nonexistent-dir-xyz/cloud.png"}`)

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	cfg.Merge(&RunConfig{PlotPath: ptrString(filepath.Join(t.TempDir(), "cloud.png"))})
	assert.NoError(t, cfg.Validate())
}

func TestLoadRunConfig_Missing(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "stat config file")
}

func TestLoadRunConfig_TooLarge(t *testing.T) {
	body := `{"sensor": "` + strings.Repeat("x", 1<<20) + `"}`
	_, err := LoadRunConfig(writeConfig(t, "big.json", body))
	assert.ErrorContains(t, err, "too large")
}

func TestMerge(t *testing.T) {
	base := &RunConfig{Sensor: ptrString("robot_1"), Frame: ptrInt(5), Workers: ptrInt(2)}
	base.Merge(&RunConfig{Frame: ptrInt(9), ApplyYawFix: ptrBool(false), DBPath: ptrString("out.db")})

	assert.Equal(t, "robot_1", base.GetSensor())
	assert.Equal(t, 9, base.GetFrame())
	assert.Equal(t, 2, base.GetWorkers())
	assert.False(t, base.GetApplyYawFix())
	assert.Equal(t, "out.db", base.GetDBPath())

	base.Merge(nil)
	assert.Equal(t, 9, base.GetFrame())
}
