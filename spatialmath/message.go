package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// PointMessage is the wire form of a position.
type PointMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuaternionMessage is the wire form of an orientation. An all-zero quaternion is read as the
// identity rotation.
type QuaternionMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// PoseMessage is the wire form of a pose: a position plus a quaternion orientation.
type PoseMessage struct {
	Position    PointMessage      `json:"position"`
	Orientation QuaternionMessage `json:"orientation"`
}

// PoseToMessage converts a pose to its wire form.
func PoseToMessage(p Pose) PoseMessage {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	return PoseMessage{
		Position:    PointMessage{X: pt.X, Y: pt.Y, Z: pt.Z},
		Orientation: QuaternionMessage{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// NewPoseFromMessage converts the wire form of a pose to a Pose.
func NewPoseFromMessage(msg PoseMessage) Pose {
	q := Quaternion(Normalize(quat.Number{
		Real: msg.Orientation.W,
		Imag: msg.Orientation.X,
		Jmag: msg.Orientation.Y,
		Kmag: msg.Orientation.Z,
	}))
	return NewPose(r3.Vector{X: msg.Position.X, Y: msg.Position.Y, Z: msg.Position.Z}, &q)
}
