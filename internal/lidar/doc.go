// Package lidar moves recorded lidar point clouds from sensor-local space
// into world space.
//
// The transform is yaw-only: a rotation about the vertical axis followed by
// a translation to the actor's location. Dataset-specific corrections such
// as CorrectRecordedYaw are separate, explicit steps owned by the caller.
package lidar
