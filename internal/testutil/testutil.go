// Package testutil provides shared test utilities and fixtures.
//
// Recording builds synthetic in-memory recordings with the same layout as
// the simulator's HDF5 files, so dataset and pipeline tests can run without
// fixtures on disk.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/lidar"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// RecordedActor is one actor in a synthetic recording.
type RecordedActor struct {
	Name string
	ID   int64
}

// Recording describes a synthetic recording.
type Recording struct {
	Actors []RecordedActor
	Frames int
	Points int
	// Sensors names actors that carry a lidar; each gets sensors/<name>.
	Sensors []string
	// RotateSlots shifts actor slot order by one every frame so slot
	// lookups cannot rely on frame 0 ordering.
	RotateSlots bool
}

// DefaultRecording mirrors the robots-4 recordings at a small scale.
func DefaultRecording() Recording {
	return Recording{
		Actors: []RecordedActor{
			{Name: "robot_1", ID: 11},
			{Name: "robot_2", ID: 22},
			{Name: "robot_3", ID: 33},
			{Name: "robot_4", ID: 44},
		},
		Frames:      6,
		Points:      5,
		Sensors:     []string{"robot_1", "robot_2"},
		RotateSlots: true,
	}
}

// RecordedPose is the uncorrected pose the fixture stores for actor index a
// (position in Actors) at frame f.
func RecordedPose(f, a int) lidar.Pose {
	return lidar.Pose{
		Rotation: lidar.Rotation{Pitch: 0, Yaw: float64(15*f) - 90, Roll: 0},
		Location: r3.Vector{X: float64(100*a + f), Y: float64(10 * a), Z: 1},
	}
}

// RecordedPoint is the sensor-local point i the fixture stores for sensor
// index s (position in Sensors) at frame f.
func RecordedPoint(s, f, i int) r3.Vector {
	return r3.Vector{X: float64(i + 1), Y: 0.1 * float64(f), Z: float64(s)}
}

// Slot returns the slot actor index a occupies in frame f.
func (r Recording) Slot(f, a int) int {
	if !r.RotateSlots {
		return a
	}
	n := len(r.Actors)
	return ((a-f)%n + n) % n
}

// Metadata renders the recording's metadata JSON. A non-actor entry is
// included so callers see the same mix as real recordings.
func (r Recording) Metadata() string {
	md := map[string]any{
		"simulation": map[string]any{"fps": 20, "frames": r.Frames},
	}
	for _, a := range r.Actors {
		md[a.Name] = map[string]any{"id": a.ID, "type": "robot"}
	}
	b, err := json.Marshal(md)
	if err != nil {
		panic(fmt.Sprintf("marshal fixture metadata: %v", err))
	}
	return string(b)
}

// Container builds the in-memory container for the recording.
func (r Recording) Container() *dataset.MemoryContainer {
	c := dataset.NewMemoryContainer()
	c.Strings[dataset.MetadataPath] = r.Metadata()

	n := len(r.Actors)
	ids := make([]float64, r.Frames*n)
	rot := make([]float64, r.Frames*n*3)
	loc := make([]float64, r.Frames*n*3)
	for f := 0; f < r.Frames; f++ {
		for a, actor := range r.Actors {
			slot := f*n + r.Slot(f, a)
			pose := RecordedPose(f, a)
			rec := pose.Rotation.Record()
			ids[slot] = float64(actor.ID)
			copy(rot[3*slot:], rec[:])
			copy(loc[3*slot:], []float64{pose.Location.X, pose.Location.Y, pose.Location.Z})
		}
	}
	c.Arrays[dataset.StateIDPath] = ids
	c.Arrays[dataset.StateRotationPath] = rot
	c.Arrays[dataset.StateLocationPath] = loc

	for s, name := range r.Sensors {
		data := make([]float64, 0, r.Frames*r.Points*3)
		for f := 0; f < r.Frames; f++ {
			for i := 0; i < r.Points; i++ {
				p := RecordedPoint(s, f, i)
				data = append(data, p.X, p.Y, p.Z)
			}
		}
		c.Arrays[dataset.SensorsGroup+"/"+name] = data
	}
	return c
}

// Open builds the container and opens it as a Dataset, failing t on error.
func (r Recording) Open(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Open(r.Container(), dataset.Layout{})
	AssertNoError(t, err)
	return ds
}

// ActorIndex returns the position of name in Actors, or -1.
func (r Recording) ActorIndex(name string) int {
	for i, a := range r.Actors {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// SensorIndex returns the position of name in Sensors, or -1.
func (r Recording) SensorIndex(name string) int {
	for i, s := range r.Sensors {
		if s == name {
			return i
		}
	}
	return -1
}
