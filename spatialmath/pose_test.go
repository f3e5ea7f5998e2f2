package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestOrientationVectorRoundTrip(t *testing.T) {
	for _, ov := range []*OrientationVector{
		{Theta: 0, OX: 0, OY: 0, OZ: 1},
		{Theta: math.Pi / 4, OX: 0, OY: 0, OZ: 1},
		{Theta: 0.3, OX: 1, OY: 0, OZ: 0},
		{Theta: -1.2, OX: 0.2, OY: -0.5, OZ: 0.7},
		{Theta: 2.5, OX: 0, OY: 0, OZ: -1},
	} {
		q := ov.Quaternion()
		back := QuatToOV(q)
		test.That(t, QuaternionAlmostEqual(back.Quaternion(), q, 1e-6), test.ShouldBeTrue)
	}
}

func TestZeroOrientation(t *testing.T) {
	ov := NewZeroOrientation().OrientationVectorDegrees()
	test.That(t, ov.OZ, test.ShouldAlmostEqual, 1)
	test.That(t, ov.Theta, test.ShouldAlmostEqual, 0)

	zeroQuat := NewPoseFromMessage(PoseMessage{})
	test.That(t, OrientationAlmostEqual(zeroQuat.Orientation(), NewZeroOrientation()), test.ShouldBeTrue)
}

func TestComposeInverse(t *testing.T) {
	a := NewPose(r3.Vector{X: 100, Y: -20, Z: 5}, &OrientationVectorDegrees{Theta: 30, OX: 0, OY: 1, OZ: 1})
	b := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &OrientationVectorDegrees{Theta: -45, OX: 1, OY: 0, OZ: 0})

	test.That(t, PoseAlmostEqual(Compose(a, PoseInverse(a)), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(a, PoseBetween(a, b)), b), test.ShouldBeTrue)

	// a pure translation composes additively
	shifted := Compose(NewPoseFromPoint(r3.Vector{X: 1}), NewPoseFromPoint(r3.Vector{Y: 2}))
	test.That(t, R3VectorAlmostEqual(shifted.Point(), r3.Vector{X: 1, Y: 2}, 1e-9), test.ShouldBeTrue)
}

func TestRotatePoint(t *testing.T) {
	quarterTurn := quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}
	rotated := RotatePoint(quarterTurn, r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(rotated, r3.Vector{Y: 1}, 1e-9), test.ShouldBeTrue)
}

func TestProtobufRoundTrip(t *testing.T) {
	p := NewPose(r3.Vector{X: 10, Y: 20, Z: 30}, &OrientationVectorDegrees{Theta: 90, OX: 0, OY: 0, OZ: 1})
	back := NewPoseFromProtobuf(PoseToProtobuf(p))
	test.That(t, PoseAlmostEqual(p, back), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(NewPoseFromProtobuf(nil), NewZeroPose()), test.ShouldBeTrue)
}

func TestMessageRoundTrip(t *testing.T) {
	p := NewPose(r3.Vector{X: -4, Y: 0.5, Z: 12}, NewQuaternion(0, 0.7071068, 0, 0.7071068))
	back := NewPoseFromMessage(PoseToMessage(p))
	test.That(t, PoseAlmostEqual(p, back), test.ShouldBeTrue)
}
