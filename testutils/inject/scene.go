package inject

import "go.viam.com/grasping/motionplan"

// Scene is an injected planning scene.
type Scene struct {
	SceneObjectsFunc func() []motionplan.SceneObject
}

// SceneObjects calls the injected SceneObjects or returns an empty scene.
func (s *Scene) SceneObjects() []motionplan.SceneObject {
	if s.SceneObjectsFunc == nil {
		return nil
	}
	return s.SceneObjectsFunc()
}
