package lidar

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tolerance = 1e-9

var approx = cmpopts.EquateApprox(0, tolerance)

func TestTransformToWorld_TranslationOnly(t *testing.T) {
	got := TransformToWorld(Rotation{}, r3.Vector{X: 10}, []r3.Vector{{X: 1}})
	want := []r3.Vector{{X: 11}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TransformToWorld mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformToWorld_YawSignConvention(t *testing.T) {
	rot := RotationFromRecord([3]float64{0, 90, 0})
	got := TransformToWorld(rot, r3.Vector{}, []r3.Vector{{X: 1}})
	require.Len(t, got, 1)
	assert.InDelta(t, 0.0, got[0].X, tolerance)
	assert.InDelta(t, 1.0, got[0].Y, tolerance)
	assert.InDelta(t, 0.0, got[0].Z, tolerance)
}

func TestTransformToWorld_OriginMapsToLocation(t *testing.T) {
	t.Parallel()
	loc := r3.Vector{X: -3.5, Y: 12.25, Z: 0.8}
	for yaw := -720.0; yaw <= 720.0; yaw += 17.5 {
		got := TransformToWorld(Rotation{Yaw: yaw}, loc, []r3.Vector{{}})
		if got[0] != loc {
			t.Fatalf("yaw %.1f: origin mapped to %v, want %v", yaw, got[0], loc)
		}
	}
}

func TestTransformToWorld_PreservesDistanceFromSensor(t *testing.T) {
	t.Parallel()
	local := []r3.Vector{
		{X: 1, Y: 2, Z: 3},
		{X: -4.5, Y: 0.25, Z: -1},
		{X: 100, Y: -100, Z: 7},
		{},
	}
	loc := r3.Vector{X: 42, Y: -17, Z: 1.5}

	for _, yaw := range []float64{0, 33, 90, 180, 271.5, -45, 1e4} {
		world := TransformToWorld(Rotation{Pitch: 12, Yaw: yaw, Roll: -8}, loc, local)
		require.Len(t, world, len(local))
		for i := range local {
			assert.InDelta(t, local[i].Norm(), world[i].Sub(loc).Norm(), 1e-9,
				"yaw %.1f point %d", yaw, i)
		}
	}
}

func TestTransformToWorld_IgnoresRollAndPitch(t *testing.T) {
	local := []r3.Vector{{X: 1, Y: 2, Z: 3}}
	loc := r3.Vector{X: 1, Y: 1, Z: 1}

	yawOnly := TransformToWorld(Rotation{Yaw: 30}, loc, local)
	withTilt := TransformToWorld(Rotation{Pitch: 45, Yaw: 30, Roll: -60}, loc, local)

	if diff := cmp.Diff(yawOnly, withTilt); diff != "" {
		t.Errorf("roll/pitch changed result (-yaw only +tilted):\n%s", diff)
	}
	assert.Equal(t, local[0].Z+loc.Z, withTilt[0].Z, "z is never rotated")
}

func TestTransformToWorld_PreservesOrder(t *testing.T) {
	local := make([]r3.Vector, 50)
	for i := range local {
		local[i] = r3.Vector{X: float64(i), Y: float64(i) * 0.5, Z: float64(-i)}
	}

	rot := Rotation{Yaw: 63}
	loc := r3.Vector{X: 2, Y: 3, Z: 4}
	world := TransformToWorld(rot, loc, local)
	require.Len(t, world, len(local))

	for i := range local {
		want := TransformPoint(rot, loc, local[i])
		if diff := cmp.Diff(want, world[i], approx); diff != "" {
			t.Fatalf("point %d out of order or wrong (-want +got):\n%s", i, diff)
		}
	}
}

func TestTransformToWorld_Empty(t *testing.T) {
	for _, local := range [][]r3.Vector{nil, {}} {
		got := TransformToWorld(Rotation{Yaw: 45}, r3.Vector{X: 1}, local)
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestTransformToWorld_DoesNotMutateInput(t *testing.T) {
	local := []r3.Vector{{X: 1, Y: 2, Z: 3}}
	TransformToWorld(Rotation{Yaw: 90}, r3.Vector{X: 5}, local)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, local[0])
}

func TestTransformToWorld_NaNPropagates(t *testing.T) {
	got := TransformToWorld(Rotation{}, r3.Vector{}, []r3.Vector{{X: math.NaN(), Y: 1, Z: 2}})
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(got[0].X), "NaN input should not be filtered, got %v", got[0])
}

func TestYawMatrix_FullTurnIsIdentity(t *testing.T) {
	t.Parallel()
	for _, yaw := range []float64{0, 12.5, 90, 181, -270} {
		a := YawMatrix(yaw)
		b := YawMatrix(yaw + 360)
		if !mat.EqualApprox(a, b, 1e-12) {
			t.Errorf("R(%.1f) != R(%.1f + 360):\n%v\n%v", yaw, yaw, mat.Formatted(a), mat.Formatted(b))
		}
	}
}

func TestYawMatrix_Layout(t *testing.T) {
	m := YawMatrix(30)
	c, s := math.Cos(DegToRad(30)), math.Sin(DegToRad(30))
	want := mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
	assert.True(t, mat.Equal(want, m))
}

func TestRotationRecordRoundTrip(t *testing.T) {
	rec := [3]float64{1, 2, 3}
	rot := RotationFromRecord(rec)
	assert.Equal(t, Rotation{Pitch: 1, Yaw: 2, Roll: 3}, rot)
	assert.Equal(t, rec, rot.Record())
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, VectorFromRecord(rec))
}

func TestRotatePoint(t *testing.T) {
	got := RotatePoint(Rotation{Yaw: 180}, r3.Vector{X: 1, Y: 2, Z: 3})
	if diff := cmp.Diff(r3.Vector{X: -1, Y: -2, Z: 3}, got, approx); diff != "" {
		t.Errorf("RotatePoint mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyPose_Identity(t *testing.T) {
	ident := [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	x, y, z := ApplyPose(1.5, -2, 3, ident)
	assert.Equal(t, 1.5, x)
	assert.Equal(t, -2.0, y)
	assert.Equal(t, 3.0, z)
}

func BenchmarkTransformToWorld(b *testing.B) {
	local := make([]r3.Vector, 1000)
	for i := range local {
		local[i] = r3.Vector{X: float64(i), Y: float64(i % 7), Z: 0.5}
	}
	rot := Rotation{Yaw: 37}
	loc := r3.Vector{X: 10, Y: 20, Z: 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TransformToWorld(rot, loc, local)
	}
}
