// Package locate produces the robot's current pose estimate.
//
// Two mutually exclusive regimes are supported: ground-truth, which reads the
// privileged global->robot transform straight from the frame tree, and noisy,
// which composes accumulated odometric motion onto a memoized initial pose so
// that odometry drift shows up in the estimate the way it would on hardware.
package locate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// Mode selects the localization regime.
type Mode string

const (
	// GroundTruth returns the frame-tree transform directly.
	GroundTruth Mode = "ground_truth"

	// Noisy layers odometry on the episode's initial pose.
	Noisy Mode = "noisy"
)

// ErrUnknownMode is returned when the estimator is built with a mode that is
// neither ground-truth nor noisy.
var ErrUnknownMode = errors.New("locate: unknown localization mode")

// TransformLookup resolves the transform from a parent frame to a child
// frame. Implementations query an external transform server; a failed lookup
// is returned as-is and aborts the caller's move without retry.
type TransformLookup interface {
	Lookup(parent, child string) (spatial.Pose, error)
}

// Frames names the coordinate frames the estimator operates over.
type Frames struct {
	Global string // fixed world frame
	Robot  string // robot body frame
	Odom   string // odometry frame (drifts relative to Global)
}

// Estimator memoizes the robot's initial pose once per episode and serves
// the current pose under the configured mode.
type Estimator struct {
	lookup TransformLookup
	mode   Mode
	frames Frames

	mu      sync.Mutex
	initial *spatial.Pose
}

// New builds an estimator. The mode is validated on first use rather than
// here so construction stays infallible for wiring.
func New(lookup TransformLookup, mode Mode, frames Frames) *Estimator {
	return &Estimator{lookup: lookup, mode: mode, frames: frames}
}

// Reset clears the memoized initial pose. Call it on the new-episode signal;
// the next pose query re-captures the initial pose.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.initial = nil
	e.mu.Unlock()
}

// Initial returns the episode's initial pose, capturing it on first call.
// Capture never re-runs within an episode.
func (e *Estimator) Initial() (spatial.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialLocked()
}

func (e *Estimator) initialLocked() (spatial.Pose, error) {
	if e.initial != nil {
		return *e.initial, nil
	}
	p, err := e.lookup.Lookup(e.frames.Global, e.frames.Robot)
	if err != nil {
		return spatial.Pose{}, fmt.Errorf("locate: capture initial pose: %w", err)
	}
	e.initial = &p
	return p, nil
}

// Current returns the robot's pose estimate in the global frame.
func (e *Estimator) Current() (spatial.Pose, error) {
	return e.PoseOf(e.frames.Robot)
}

// PoseOf returns the pose of an arbitrary frame in the global frame, under
// the same localization regime as the robot pose.
func (e *Estimator) PoseOf(frame string) (spatial.Pose, error) {
	e.mu.Lock()
	initial, err := e.initialLocked()
	e.mu.Unlock()
	if err != nil {
		return spatial.Pose{}, err
	}

	switch e.mode {
	case GroundTruth:
		return e.lookup.Lookup(e.frames.Global, frame)
	case Noisy:
		odomT, err := e.lookup.Lookup(e.frames.Odom, frame)
		if err != nil {
			return spatial.Pose{}, err
		}
		return initial.Compose(odomT), nil
	default:
		return spatial.Pose{}, fmt.Errorf("%w: %q", ErrUnknownMode, e.mode)
	}
}
