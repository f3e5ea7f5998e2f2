// Package referenceframe defines the frame bookkeeping used to relate object, approach and
// end-effector frames.
package referenceframe

import (
	"encoding/json"

	commonpb "go.viam.com/api/common/v1"

	"go.viam.com/grasping/spatialmath"
)

// World is the name of the root frame every other frame is ultimately parented to.
const World = "world"

// PoseInFrame is a data structure that packages a pose with the name of the
// frame in which it was observed.
type PoseInFrame struct {
	frame string
	pose  spatialmath.Pose
}

// NewPoseInFrame generates a new PoseInFrame.
func NewPoseInFrame(frame string, pose spatialmath.Pose) *PoseInFrame {
	if pose == nil {
		pose = spatialmath.NewZeroPose()
	}
	return &PoseInFrame{
		frame: frame,
		pose:  pose,
	}
}

// FrameName returns the name of the frame in which the pose was observed.
func (pF *PoseInFrame) FrameName() string {
	return pF.frame
}

// Pose returns the pose that was observed.
func (pF *PoseInFrame) Pose() spatialmath.Pose {
	return pF.pose
}

// Transform expresses the pose in the parent frame of tf, where tf is the pose of this pose's
// frame in that parent.
func (pF *PoseInFrame) Transform(tf *PoseInFrame) *PoseInFrame {
	return NewPoseInFrame(tf.frame, spatialmath.Compose(tf.pose, pF.pose))
}

// AlmostEqual compares frame names exactly and poses approximately.
func (pF *PoseInFrame) AlmostEqual(other *PoseInFrame) bool {
	return pF.FrameName() == other.FrameName() && spatialmath.PoseAlmostEqual(pF.Pose(), other.Pose())
}

// PoseInFrameToProtobuf converts a PoseInFrame struct to a
// PoseInFrame message as specified in common.proto.
func PoseInFrameToProtobuf(framedPose *PoseInFrame) *commonpb.PoseInFrame {
	return &commonpb.PoseInFrame{
		ReferenceFrame: framedPose.frame,
		Pose:           spatialmath.PoseToProtobuf(framedPose.pose),
	}
}

// ProtobufToPoseInFrame converts a PoseInFrame message as specified in
// common.proto to a PoseInFrame struct.
func ProtobufToPoseInFrame(proto *commonpb.PoseInFrame) *PoseInFrame {
	return NewPoseInFrame(proto.GetReferenceFrame(), spatialmath.NewPoseFromProtobuf(proto.GetPose()))
}

// PoseInFrameMessage is the wire form of a PoseInFrame.
type PoseInFrameMessage struct {
	FrameID string                  `json:"frame_id"`
	Pose    spatialmath.PoseMessage `json:"pose"`
}

// PoseInFrameToMessage converts a PoseInFrame to its wire form.
func PoseInFrameToMessage(framedPose *PoseInFrame) PoseInFrameMessage {
	return PoseInFrameMessage{FrameID: framedPose.frame, Pose: spatialmath.PoseToMessage(framedPose.pose)}
}

// NewPoseInFrameFromMessage converts the wire form of a PoseInFrame.
func NewPoseInFrameFromMessage(msg PoseInFrameMessage) *PoseInFrame {
	return NewPoseInFrame(msg.FrameID, spatialmath.NewPoseFromMessage(msg.Pose))
}

// MarshalJSON encodes the pose in its wire form.
func (pF *PoseInFrame) MarshalJSON() ([]byte, error) {
	return json.Marshal(PoseInFrameToMessage(pF))
}

// UnmarshalJSON decodes the wire form of a pose.
func (pF *PoseInFrame) UnmarshalJSON(data []byte) error {
	var msg PoseInFrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*pF = *NewPoseInFrameFromMessage(msg)
	return nil
}
