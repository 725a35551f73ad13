package dataset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/simlidar/internal/lidar"
	"github.com/banshee-data/simlidar/internal/monitoring"
)

// Recording layout paths.
const (
	StateIDPath       = "state/id"
	StateRotationPath = "state/rotation"
	StateLocationPath = "state/location"
	SensorsGroup      = "sensors"
)

// Layout overrides shape inference. Zero fields are inferred: actors per
// frame from the number of metadata actor records, points per frame from
// each sensor array's length.
type Layout struct {
	ActorsPerFrame int
	PointsPerFrame int
}

// Dataset is a read-only view of one recording. It is safe for concurrent
// use once opened.
type Dataset struct {
	c      Container
	layout Layout
	meta   Metadata

	frames int
	actors int

	ids       []float64
	rotations []float64
	locations []float64

	sensors []string

	mu     sync.Mutex
	clouds map[string]*sensorCloud
}

type sensorCloud struct {
	data   []float64
	points int
}

// Open reads metadata and actor state from c and checks their shapes. Sensor
// clouds are loaded on first use. The Dataset takes ownership of c; Close
// closes it.
func Open(c Container, layout Layout) (*Dataset, error) {
	text, err := c.String(MetadataPath)
	if err != nil {
		return nil, err
	}
	meta, err := ParseMetadata(text)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		c:      c,
		layout: layout,
		meta:   meta,
		clouds: make(map[string]*sensorCloud),
	}

	if d.ids, err = c.Float64s(StateIDPath); err != nil {
		return nil, err
	}
	if d.rotations, err = c.Float64s(StateRotationPath); err != nil {
		return nil, err
	}
	if d.locations, err = c.Float64s(StateLocationPath); err != nil {
		return nil, err
	}

	d.actors = layout.ActorsPerFrame
	if d.actors == 0 {
		d.actors = meta.Len()
	}
	if d.actors <= 0 {
		return nil, fmt.Errorf("%w: cannot infer actors per frame (no metadata actors)", ErrShapeMismatch)
	}
	if len(d.ids)%d.actors != 0 {
		return nil, fmt.Errorf("%w: %s has %d values, not a multiple of %d actors",
			ErrShapeMismatch, StateIDPath, len(d.ids), d.actors)
	}
	d.frames = len(d.ids) / d.actors

	for _, arr := range []struct {
		path string
		n    int
	}{
		{StateRotationPath, len(d.rotations)},
		{StateLocationPath, len(d.locations)},
	} {
		if arr.n != 3*len(d.ids) {
			return nil, fmt.Errorf("%w: %s has %d values, want %d (%d frames × %d actors × 3)",
				ErrShapeMismatch, arr.path, arr.n, 3*len(d.ids), d.frames, d.actors)
		}
	}

	if d.sensors, err = c.Keys(SensorsGroup); err != nil {
		return nil, err
	}

	monitoring.Logf("dataset: %d frames, %d actors, %d sensors", d.frames, d.actors, len(d.sensors))
	return d, nil
}

// OpenFile opens an HDF5 recording from disk.
func OpenFile(path string, layout Layout) (*Dataset, error) {
	c, err := OpenHDF5(path)
	if err != nil {
		return nil, err
	}
	d, err := Open(c, layout)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying container.
func (d *Dataset) Close() error {
	return d.c.Close()
}

// Frames is the number of recorded frames.
func (d *Dataset) Frames() int { return d.frames }

// ActorsPerFrame is the number of actor slots in every frame.
func (d *Dataset) ActorsPerFrame() int { return d.actors }

// Metadata returns the decoded metadata.
func (d *Dataset) Metadata() Metadata { return d.meta }

// Sensors lists the sensor names under sensors/, sorted.
func (d *Dataset) Sensors() []string {
	out := make([]string, len(d.sensors))
	copy(out, d.sensors)
	return out
}

// Keys lists the children of a container group ("" for the root).
func (d *Dataset) Keys(group string) ([]string, error) {
	return d.c.Keys(group)
}

func (d *Dataset) checkFrame(frame int) error {
	if frame < 0 || frame >= d.frames {
		return fmt.Errorf("%w: frame %d not in [0, %d)", ErrFrameOutOfRange, frame, d.frames)
	}
	return nil
}

// ActorIDs returns the actor identifiers recorded in frame, in slot order.
func (d *Dataset) ActorIDs(frame int) ([]int64, error) {
	if err := d.checkFrame(frame); err != nil {
		return nil, err
	}
	row := d.ids[frame*d.actors : (frame+1)*d.actors]
	ids := make([]int64, len(row))
	for i, v := range row {
		ids[i] = int64(v)
	}
	return ids, nil
}

// ActorPose resolves actorID within frame and returns its recorded pose,
// uncorrected.
func (d *Dataset) ActorPose(frame int, actorID int64) (lidar.Pose, error) {
	ids, err := d.ActorIDs(frame)
	if err != nil {
		return lidar.Pose{}, err
	}
	slot, err := ResolveActorIndex(ids, actorID)
	if err != nil {
		return lidar.Pose{}, fmt.Errorf("frame %d: %w", frame, err)
	}

	off := (frame*d.actors + slot) * 3
	var rot, loc [3]float64
	copy(rot[:], d.rotations[off:off+3])
	copy(loc[:], d.locations[off:off+3])

	return lidar.Pose{
		Rotation: lidar.RotationFromRecord(rot),
		Location: lidar.VectorFromRecord(loc),
	}, nil
}

// ActorPoseByName looks the actor up in metadata, then behaves like ActorPose.
func (d *Dataset) ActorPoseByName(frame int, name string) (lidar.Pose, error) {
	id, err := d.meta.ActorID(name)
	if err != nil {
		return lidar.Pose{}, err
	}
	return d.ActorPose(frame, id)
}

// SensorShape returns the cloud shape for a sensor as [frames, points, 3].
func (d *Dataset) SensorShape(name string) ([]int, error) {
	cloud, err := d.cloud(name)
	if err != nil {
		return nil, err
	}
	return []int{d.frames, cloud.points, 3}, nil
}

// SensorPoints returns the sensor-local cloud for frame as a fresh slice.
func (d *Dataset) SensorPoints(name string, frame int) ([]r3.Vector, error) {
	if err := d.checkFrame(frame); err != nil {
		return nil, err
	}
	cloud, err := d.cloud(name)
	if err != nil {
		return nil, err
	}

	row := cloud.data[frame*cloud.points*3 : (frame+1)*cloud.points*3]
	points := make([]r3.Vector, cloud.points)
	for i := range points {
		points[i] = r3.Vector{X: row[3*i], Y: row[3*i+1], Z: row[3*i+2]}
	}
	return points, nil
}

func (d *Dataset) cloud(name string) (*sensorCloud, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cloud, ok := d.clouds[name]; ok {
		return cloud, nil
	}
	if i := sort.SearchStrings(d.sensors, name); i >= len(d.sensors) || d.sensors[i] != name {
		return nil, fmt.Errorf("%w: %q", ErrSensorNotFound, name)
	}

	data, err := d.c.Float64s(joinPath(SensorsGroup, name))
	if err != nil {
		return nil, err
	}

	points := d.layout.PointsPerFrame
	if points == 0 {
		if d.frames == 0 || len(data)%(3*d.frames) != 0 {
			return nil, fmt.Errorf("%w: sensor %s has %d values, not divisible into %d frames of xyz points",
				ErrShapeMismatch, name, len(data), d.frames)
		}
		points = len(data) / (3 * d.frames)
	}
	if len(data) != d.frames*points*3 {
		return nil, fmt.Errorf("%w: sensor %s has %d values, want %d (%d frames × %d points × 3)",
			ErrShapeMismatch, name, len(data), d.frames*points*3, d.frames, points)
	}

	cloud := &sensorCloud{data: data, points: points}
	d.clouds[name] = cloud
	monitoring.Logf("dataset: loaded sensor %s (%d points per frame)", name, points)
	return cloud, nil
}
