package referenceframe

import (
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	commonpb "go.viam.com/api/common/v1"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/grasping/spatialmath"
)

// Transform is a stamped relation between a parent frame and a child frame, expressed as a
// translation plus a rotation of the child in the parent.
type Transform struct {
	UUID        uuid.UUID
	Parent      string
	Child       string
	Translation r3.Vector
	Rotation    quat.Number
	Stamp       time.Time
}

// NewTransform splits a pose into the translation and rotation pair of a transform.
func NewTransform(parent, child string, pose spatialmath.Pose, stamp time.Time) Transform {
	return Transform{
		UUID:        uuid.New(),
		Parent:      parent,
		Child:       child,
		Translation: pose.Point(),
		Rotation:    pose.Orientation().Quaternion(),
		Stamp:       stamp,
	}
}

// Pose rebuilds the pose of the child in the parent frame.
func (tf Transform) Pose() spatialmath.Pose {
	q := spatialmath.Quaternion(tf.Rotation)
	return spatialmath.NewPose(tf.Translation, &q)
}

// TransformToProtobuf converts a transform to the Transform message from common.proto.
func TransformToProtobuf(tf Transform) *commonpb.Transform {
	return &commonpb.Transform{
		ReferenceFrame:      tf.Child,
		PoseInObserverFrame: PoseInFrameToProtobuf(NewPoseInFrame(tf.Parent, tf.Pose())),
		Uuid:                tf.UUID[:],
	}
}

// TransformChange is emitted to subscribers each time a frame is (re)published.
type TransformChange struct {
	Transform Transform
	// Replaced is true when a frame of the same name had already been published.
	Replaced bool
}

// Broadcaster holds the latest transform published for each child frame and fans changes
// out to subscribers. It exists for external diagnostics; nothing reads it back to plan.
type Broadcaster struct {
	mu          sync.RWMutex
	latest      map[string]Transform
	subscribers map[int]chan TransformChange
	nextID      int
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		latest:      map[string]Transform{},
		subscribers: map[int]chan TransformChange{},
	}
}

// SendTransform records tf as the latest transform for its child frame and notifies
// subscribers. Slow subscribers miss changes rather than block the sender.
func (b *Broadcaster) SendTransform(tf Transform) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, replaced := b.latest[tf.Child]
	b.latest[tf.Child] = tf
	change := TransformChange{Transform: tf, Replaced: replaced}
	for _, ch := range b.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}

// Latest returns the last transform published for the child frame.
func (b *Broadcaster) Latest(child string) (Transform, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tf, ok := b.latest[child]
	return tf, ok
}

// Frames returns the latest transform of every published frame.
func (b *Broadcaster) Frames() []Transform {
	b.mu.RLock()
	defer b.mu.RUnlock()
	frames := make([]Transform, 0, len(b.latest))
	for _, tf := range b.latest {
		frames = append(frames, tf)
	}
	return frames
}

// Subscribe returns a channel of transform changes and a function that cancels the
// subscription and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan TransformChange, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan TransformChange, buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}
