package pipeline

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/lidar"
)

// FrameSource is the part of *dataset.Dataset the pipeline reads from.
type FrameSource interface {
	Frames() int
	Metadata() dataset.Metadata
	ActorPose(frame int, actorID int64) (lidar.Pose, error)
	SensorPoints(name string, frame int) ([]r3.Vector, error)
}

// FrameResult is one sensor's cloud at one frame in both spaces.
type FrameResult struct {
	Sensor  string
	Frame   int
	ActorID int64

	// RecordedPose is the pose as stored; Pose is what the transform used.
	RecordedPose lidar.Pose
	Pose         lidar.Pose
	// PoseIssues lists validation findings for Pose (e.g. ignored roll).
	PoseIssues []string

	Local []r3.Vector
	World []r3.Vector
}

// FrameTransformer builds world-space clouds for sensors in a recording.
type FrameTransformer struct {
	Source FrameSource
	// ApplyYawFix applies lidar.CorrectRecordedYaw to every recorded pose.
	// Recordings from the simulator need it; synthetic sources may not.
	ApplyYawFix bool
}

// NewFrameTransformer returns a transformer with the recorded-yaw
// correction enabled.
func NewFrameTransformer(src FrameSource) *FrameTransformer {
	return &FrameTransformer{Source: src, ApplyYawFix: true}
}

// TransformFrame resolves the actor carrying sensor (the metadata entry of
// the same name), reads its pose at frame, applies the yaw correction when
// enabled and transforms the sensor's local cloud to world space.
func (ft *FrameTransformer) TransformFrame(sensor string, frame int) (*FrameResult, error) {
	actorID, err := ft.Source.Metadata().ActorID(sensor)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", sensor, err)
	}

	recorded, err := ft.Source.ActorPose(frame, actorID)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", sensor, err)
	}

	pose := recorded
	if ft.ApplyYawFix {
		pose.Rotation = lidar.CorrectRecordedYaw(recorded.Rotation)
	}

	local, err := ft.Source.SensorPoints(sensor, frame)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", sensor, err)
	}

	return &FrameResult{
		Sensor:       sensor,
		Frame:        frame,
		ActorID:      actorID,
		RecordedPose: recorded,
		Pose:         pose,
		PoseIssues:   lidar.ValidatePose(pose).Issues,
		Local:        local,
		World:        pose.Transform(local),
	}, nil
}
