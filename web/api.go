package web

import (
	"time"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/spatialmath"
)

// Routes of the front-end.
const (
	ReachabilityPath = "/api/v1/grasps/reachability"
	ExecutePath      = "/api/v1/grasps/execute"
	HomeArmPath      = "/api/v1/arm/home"
	OpenHandPath     = "/api/v1/hand/open"
	CloseHandPath    = "/api/v1/hand/close"
	BoxesPath        = "/api/v1/scene/boxes"
	MeshesPath       = "/api/v1/scene/meshes"
	ObjectsPath      = "/api/v1/scene/objects"
	GeometriesPath   = "/api/v1/scene/geometries"
	RefreshPath      = "/api/v1/models/refresh"
	ReloadPath       = "/api/v1/models/reload"
	FramesPath       = "/api/v1/frames"
	// FramesStreamPath streams frame changes as newline-delimited JSON FrameChanges.
	FramesStreamPath = "/api/v1/frames/stream"
)

// ReachabilityRequest asks whether a proposal is reachable.
type ReachabilityRequest struct {
	Grasp grasp.Proposal `json:"grasp"`
}

// ExecuteRequest asks to execute a proposal, placing the object at PlacePose when it is set.
type ExecuteRequest struct {
	Grasp     grasp.Proposal              `json:"grasp"`
	PlacePose *referenceframe.PoseInFrame `json:"place_pose,omitempty"`
}

// SuccessResponse is the reply of the named-target endpoints.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AddBoxRequest adds a box to the scene. Sizes are in mm.
type AddBoxRequest struct {
	Name  string                      `json:"name"`
	Pose  *referenceframe.PoseInFrame `json:"pose"`
	SizeX float64                     `json:"size_x"`
	SizeY float64                     `json:"size_y"`
	SizeZ float64                     `json:"size_z"`
}

// AddMeshRequest adds a mesh file to the scene.
type AddMeshRequest struct {
	Name     string                      `json:"name"`
	Pose     *referenceframe.PoseInFrame `json:"pose"`
	Filename string                      `json:"filename"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Frame is the wire form of a published transform.
type Frame struct {
	Parent string                  `json:"parent"`
	Child  string                  `json:"child"`
	Pose   spatialmath.PoseMessage `json:"pose"`
	Stamp  time.Time               `json:"stamp"`
}

// FrameChange is one line of the frame stream.
type FrameChange struct {
	Frame Frame `json:"frame"`
	// Replaced is true when the frame had been published before.
	Replaced bool `json:"replaced"`
}

// FrameFromTransform converts a published transform to its wire form.
func FrameFromTransform(tf referenceframe.Transform) Frame {
	return Frame{
		Parent: tf.Parent,
		Child:  tf.Child,
		Pose:   spatialmath.PoseToMessage(tf.Pose()),
		Stamp:  tf.Stamp,
	}
}
