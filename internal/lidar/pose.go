package lidar

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity
const MatrixValidationTolerance = 0.01

// Pose is an actor's rotation (degrees) and location at one frame.
type Pose struct {
	Rotation Rotation
	Location r3.Vector
}

// Matrix returns the row-major 4×4 homogeneous transform for the pose's
// yaw rotation and translation.
func (p Pose) Matrix() [16]float64 {
	yaw := DegToRad(p.Rotation.Yaw)
	c, s := math.Cos(yaw), math.Sin(yaw)
	return [16]float64{
		c, -s, 0, p.Location.X,
		s, c, 0, p.Location.Y,
		0, 0, 1, p.Location.Z,
		0, 0, 0, 1,
	}
}

// Transform moves local into world space using this pose.
func (p Pose) Transform(local []r3.Vector) []r3.Vector {
	return TransformToWorld(p.Rotation, p.Location, local)
}

// String formats the pose the way the CLI prints it.
func (p Pose) String() string {
	return fmt.Sprintf("rotation (%.2f, %.2f, %.2f) location (%.2f, %.2f, %.2f)",
		p.Rotation.Pitch, p.Rotation.Yaw, p.Rotation.Roll,
		p.Location.X, p.Location.Y, p.Location.Z)
}

// PoseValidationResult contains the result of pose validation.
type PoseValidationResult struct {
	Valid  bool
	Issues []string
}

// ValidatePose reports problems with a recorded pose. Non-finite values make
// the pose invalid. Non-zero roll or pitch is reported but left valid, since
// the yaw-only transform ignores both.
func ValidatePose(pose Pose) PoseValidationResult {
	result := PoseValidationResult{Issues: make([]string, 0)}

	for _, v := range []float64{
		pose.Rotation.Pitch, pose.Rotation.Yaw, pose.Rotation.Roll,
		pose.Location.X, pose.Location.Y, pose.Location.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			result.Issues = append(result.Issues, "pose contains non-finite values")
			return result
		}
	}

	if !IsValidTransformMatrix(pose.Matrix()) {
		result.Issues = append(result.Issues, "invalid transform matrix (not proper rigid transform)")
		return result
	}

	if pose.Rotation.Pitch != 0 || pose.Rotation.Roll != 0 {
		result.Issues = append(result.Issues,
			fmt.Sprintf("pitch %.2f and roll %.2f ignored by yaw-only transform",
				pose.Rotation.Pitch, pose.Rotation.Roll))
	}

	result.Valid = true
	return result
}

// IsValidTransformMatrix checks if a 4x4 matrix is a valid rigid transform.
// A valid rigid transform has:
// 1. Orthonormal rotation submatrix (det ≈ 1)
// 2. Last row is [0 0 0 1]
func IsValidTransformMatrix(T [16]float64) bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	// Check determinant ≈ 1 (proper rotation, not reflection)
	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}

	return true
}
