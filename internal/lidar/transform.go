package lidar

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Rotation is an actor orientation in degrees. The recorded simulation stores
// it as a (pitch, yaw, roll) triple, so Yaw sits at index 1 of the record.
type Rotation struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// RotationFromRecord maps a recorded rotation triple onto named components.
func RotationFromRecord(rec [3]float64) Rotation {
	return Rotation{Pitch: rec[0], Yaw: rec[1], Roll: rec[2]}
}

// Record returns the rotation in recorded (pitch, yaw, roll) order.
func (r Rotation) Record() [3]float64 {
	return [3]float64{r.Pitch, r.Yaw, r.Roll}
}

// VectorFromRecord converts a recorded (x, y, z) triple to a vector.
func VectorFromRecord(rec [3]float64) r3.Vector {
	return r3.Vector{X: rec[0], Y: rec[1], Z: rec[2]}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// YawMatrix returns the 3×3 rotation about the vertical axis for yawDeg:
//
//	[cos -sin 0]
//	[sin  cos 0]
//	[ 0    0  1]
//
// Roll and pitch are never folded in; the transform is yaw-only.
func YawMatrix(yawDeg float64) *mat.Dense {
	yaw := DegToRad(yawDeg)
	c, s := math.Cos(yaw), math.Sin(yaw)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// TransformToWorld moves a sensor-local cloud into world space:
// p' = R(yaw)·p + location for every point, in input order.
//
// rot must already carry any dataset yaw correction (see CorrectRecordedYaw).
// The cloud is packed into an N×3 matrix and rotated with a single
// multiplication against Rᵀ. NaN and Inf values are not filtered.
// An empty cloud yields an empty, non-nil slice.
func TransformToWorld(rot Rotation, location r3.Vector, local []r3.Vector) []r3.Vector {
	world := make([]r3.Vector, len(local))
	if len(local) == 0 {
		return world
	}

	data := make([]float64, 0, 3*len(local))
	for _, p := range local {
		data = append(data, p.X, p.Y, p.Z)
	}
	pts := mat.NewDense(len(local), 3, data)

	var rotated mat.Dense
	rotated.Mul(pts, YawMatrix(rot.Yaw).T())

	for i := range world {
		world[i] = r3.Vector{
			X: rotated.At(i, 0) + location.X,
			Y: rotated.At(i, 1) + location.Y,
			Z: rotated.At(i, 2) + location.Z,
		}
	}
	return world
}

// TransformPoint transforms a single point through the homogeneous pose
// matrix. It agrees with TransformToWorld for a one-point cloud.
func TransformPoint(rot Rotation, location r3.Vector, p r3.Vector) r3.Vector {
	pose := Pose{Rotation: rot, Location: location}
	x, y, z := ApplyPose(p.X, p.Y, p.Z, pose.Matrix())
	return r3.Vector{X: x, Y: y, Z: z}
}

// RotatePoint applies only the yaw rotation to p, without translation.
func RotatePoint(rot Rotation, p r3.Vector) r3.Vector {
	return TransformPoint(rot, r3.Vector{}, p)
}

// ApplyPose applies a 4x4 row-major transform T to point (x,y,z).
// T is expected as [16]float64 row-major: m00,m01,m02,m03, m10,...
func ApplyPose(x, y, z float64, T [16]float64) (wx, wy, wz float64) {
	wx = T[0]*x + T[1]*y + T[2]*z + T[3]
	wy = T[4]*x + T[5]*y + T[6]*z + T[7]
	wz = T[8]*x + T[9]*y + T[10]*z + T[11]
	return
}
