// Package spatialmath defines spatial mathematical operations used to describe grasp and
// obstacle poses.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// If two angles differ by less than this amount, we consider them the same for the purpose of doing
// math around the poles of orientation.
const angleEpsilon = 0.0001 // radians

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	OrientationVectorRadians() *OrientationVector
	OrientationVectorDegrees() *OrientationVectorDegrees
	Quaternion() quat.Number
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &Quaternion{Real: 1}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := Quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// QuaternionAlmostEqual is an equality test for two quaternions. Since q and -q describe the
// same rotation, both signs are accepted.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	flipped := math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
	return same || flipped
}

// Normalize scales a quaternion to unit length. A zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// Quaternion is an orientation expressed as a unit quaternion.
type Quaternion quat.Number

// NewQuaternion returns a normalized quaternion orientation. The argument order follows the
// x, y, z, w convention used by most message formats.
func NewQuaternion(x, y, z, w float64) *Quaternion {
	q := Quaternion(Normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}))
	return &q
}

// Quaternion returns the orientation as a quaternion.
func (q *Quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// OrientationVectorRadians returns the orientation as an orientation vector with theta in radians.
func (q *Quaternion) OrientationVectorRadians() *OrientationVector {
	return QuatToOV(q.Quaternion())
}

// OrientationVectorDegrees returns the orientation as an orientation vector with theta in degrees.
func (q *Quaternion) OrientationVectorDegrees() *OrientationVectorDegrees {
	return q.OrientationVectorRadians().Degrees()
}

// OrientationVector is the axis a frame's +Z points along plus a rotation Theta (radians)
// around that axis.
type OrientationVector struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// OrientationVectorDegrees is an OrientationVector with Theta in degrees.
type OrientationVectorDegrees struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// Degrees converts theta to degrees.
func (ov *OrientationVector) Degrees() *OrientationVectorDegrees {
	return &OrientationVectorDegrees{Theta: ov.Theta * 180 / math.Pi, OX: ov.OX, OY: ov.OY, OZ: ov.OZ}
}

// Radians converts theta to radians.
func (ovd *OrientationVectorDegrees) Radians() *OrientationVector {
	return &OrientationVector{Theta: ovd.Theta * math.Pi / 180, OX: ovd.OX, OY: ovd.OY, OZ: ovd.OZ}
}

// Quaternion returns the orientation vector as a quaternion.
func (ov *OrientationVector) Quaternion() quat.Number {
	norm := math.Sqrt(ov.OX*ov.OX + ov.OY*ov.OY + ov.OZ*ov.OZ)
	ox, oy, oz := 0.0, 0.0, 1.0
	if norm > 0 {
		ox, oy, oz = ov.OX/norm, ov.OY/norm, ov.OZ/norm
	}
	lat := math.Acos(clamp(oz))
	lon := 0.0
	if 1-math.Abs(oz) > angleEpsilon {
		lon = math.Atan2(oy, ox)
	}
	return zyz(lon, lat, ov.Theta)
}

// OrientationVectorRadians returns itself.
func (ov *OrientationVector) OrientationVectorRadians() *OrientationVector {
	return ov
}

// OrientationVectorDegrees returns the orientation vector with theta in degrees.
func (ov *OrientationVector) OrientationVectorDegrees() *OrientationVectorDegrees {
	return ov.Degrees()
}

// Quaternion returns the orientation vector as a quaternion.
func (ovd *OrientationVectorDegrees) Quaternion() quat.Number {
	return ovd.Radians().Quaternion()
}

// OrientationVectorRadians returns the orientation vector with theta in radians.
func (ovd *OrientationVectorDegrees) OrientationVectorRadians() *OrientationVector {
	return ovd.Radians()
}

// OrientationVectorDegrees returns itself.
func (ovd *OrientationVectorDegrees) OrientationVectorDegrees() *OrientationVectorDegrees {
	return ovd
}

// QuatToOV converts a quaternion to an orientation vector. It is the inverse of
// OrientationVector.Quaternion: the rotation is decomposed into a Z-Y-Z sequence of
// longitude, latitude and theta.
func QuatToOV(q quat.Number) *OrientationVector {
	q = Normalize(q)
	zAxis := quat.Number{Kmag: 1}
	newZ := quat.Mul(quat.Mul(q, zAxis), quat.Conj(q))
	ov := &OrientationVector{OX: newZ.Imag, OY: newZ.Jmag, OZ: newZ.Kmag}

	lat := math.Acos(clamp(newZ.Kmag))
	lon := 0.0
	if 1-math.Abs(newZ.Kmag) > angleEpsilon {
		lon = math.Atan2(newZ.Jmag, newZ.Imag)
	}
	// whatever remains after undoing longitude and latitude is a pure rotation about Z
	rest := quat.Mul(quat.Conj(zyz(lon, lat, 0)), q)
	ov.Theta = 2 * math.Atan2(rest.Kmag, rest.Real)
	if ov.Theta > math.Pi {
		ov.Theta -= 2 * math.Pi
	} else if ov.Theta < -math.Pi {
		ov.Theta += 2 * math.Pi
	}
	return ov
}

func zyz(lon, lat, theta float64) quat.Number {
	qLon := quat.Number{Real: math.Cos(lon / 2), Kmag: math.Sin(lon / 2)}
	qLat := quat.Number{Real: math.Cos(lat / 2), Jmag: math.Sin(lat / 2)}
	qTheta := quat.Number{Real: math.Cos(theta / 2), Kmag: math.Sin(theta / 2)}
	return quat.Mul(quat.Mul(qLon, qLat), qTheta)
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
