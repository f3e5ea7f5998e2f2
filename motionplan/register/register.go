// Package register registers all planner backends.
package register

import (
	// register backends.
	_ "go.viam.com/grasping/motionplan/remoteplanner"
	_ "go.viam.com/grasping/motionplan/simplanner"
)
