// Package scout translates high-level move intents into goals for the drive
// controllers and owns the episode lifecycle (initial-pose memo, trajectory
// cursor, episode identity).
package scout

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ospreylabs/go-scout/internal/log"
	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/locate"
	"github.com/ospreylabs/go-scout/pkg/spatial"
	"github.com/ospreylabs/go-scout/pkg/trajectory"
)

// ErrMoveInProgress is returned when a move is requested while another move
// still owns the velocity channel. One controller execution at a time.
var ErrMoveInProgress = errors.New("scout: a move is already executing")

// Scout is the host-facing controller facade. All move operations are
// synchronous: the call blocks until the control loop exits with a terminal
// outcome.
type Scout struct {
	estimator *locate.Estimator
	driver    *drive.Controller
	seq       *trajectory.Sequencer

	busy    atomic.Bool
	episode atomic.Value // string
}

// New wires the controller facade. NewEpisode is called once so the scout
// always has an episode identity.
func New(estimator *locate.Estimator, driver *drive.Controller, seq *trajectory.Sequencer) *Scout {
	s := &Scout{estimator: estimator, driver: driver, seq: seq}
	s.NewEpisode()
	return s
}

// NewEpisode resets per-episode state: the memoized initial pose is cleared
// for re-capture and the trajectory cursor rewinds. Returns the new episode
// id.
func (s *Scout) NewEpisode() string {
	id := uuid.NewString()
	s.estimator.Reset()
	s.seq.Reset()
	s.episode.Store(id)
	log.Info("new episode", "episode", id)
	return id
}

// EpisodeID returns the current episode identifier.
func (s *Scout) EpisodeID() string {
	id, _ := s.episode.Load().(string)
	return id
}

// acquire takes the single-flight guard for the duration of one move.
func (s *Scout) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrMoveInProgress
	}
	return nil
}

func (s *Scout) release() {
	s.busy.Store(false)
}

// Busy reports whether a move loop currently owns the velocity channel.
func (s *Scout) Busy() bool {
	return s.busy.Load()
}

// WaypointsRemaining reports how many trajectory waypoints are left to visit
// in the current episode.
func (s *Scout) WaypointsRemaining() int {
	return s.seq.Remaining()
}

// CurrentPose returns the robot's pose estimate under the configured
// localization mode.
func (s *Scout) CurrentPose() (spatial.Pose, error) {
	return s.estimator.Current()
}

// PoseOf resolves a named frame under the same localization mode.
func (s *Scout) PoseOf(frame string) (spatial.Pose, error) {
	return s.estimator.PoseOf(frame)
}

// InitialPose returns the episode's memoized initial pose, capturing it if
// this is the first query of the episode.
func (s *Scout) InitialPose() (spatial.Pose, error) {
	return s.estimator.Initial()
}

// MoveByDistance drives the robot d length units along its current forward
// axis (negative d backs up) with zero net rotation.
func (s *Scout) MoveByDistance(ctx context.Context, d float64) (drive.Outcome, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()

	current, err := s.estimator.Current()
	if err != nil {
		return "", err
	}
	goal := current.Compose(spatial.FromXYYaw(d, 0, 0))
	return s.drive(ctx, "move_distance", goal)
}

// MoveByAngle rotates the robot in place by theta radians (wrapped).
func (s *Scout) MoveByAngle(ctx context.Context, theta float64) (drive.Outcome, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()

	current, err := s.estimator.Current()
	if err != nil {
		return "", err
	}
	goal := current.Compose(spatial.FromXYYaw(0, 0, spatial.Wrap(theta)))
	return s.drive(ctx, "move_angle", goal)
}

// MoveToPose drives to an absolute goal pose in the global frame.
func (s *Scout) MoveToPose(ctx context.Context, goal spatial.Pose) (drive.Outcome, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()
	return s.drive(ctx, "move_pose", goal)
}

// MoveRelative composes a relative transform onto the current pose and
// drives there, logging start, goal, and final poses. Intended for manual
// debugging of frame composition.
func (s *Scout) MoveRelative(ctx context.Context, rel spatial.Pose) (drive.Outcome, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()

	start, err := s.estimator.Current()
	if err != nil {
		return "", err
	}
	goal := start.Compose(rel)
	log.Info("relative move",
		"start", poseAttr(start), "goal_relative", poseAttr(rel), "goal", poseAttr(goal))

	outcome, err := s.drive(ctx, "move_relative", goal)
	if err != nil {
		return "", err
	}
	if final, ferr := s.estimator.Current(); ferr == nil {
		log.Info("relative move finished",
			"final", poseAttr(final), "final_relative", poseAttr(start.Relative(final)))
	}
	return outcome, nil
}

// MoveToNextWaypoint drives to the trajectory's next waypoint and advances
// the cursor once the drive loop returns. An exhausted trajectory is a
// terminal outcome, not an error: the cursor stays put and the drive
// controller is never entered.
func (s *Scout) MoveToNextWaypoint(ctx context.Context) (drive.Outcome, error) {
	if err := s.acquire(); err != nil {
		return "", err
	}
	defer s.release()

	wp, err := s.seq.Next()
	if errors.Is(err, trajectory.ErrExhausted) {
		log.Warn("trajectory exhausted", "cursor", s.seq.Cursor())
		recordOutcome("move_next", drive.Exhausted)
		return drive.Exhausted, nil
	}
	if err != nil {
		return "", err
	}

	outcome, err := s.drive(ctx, "move_next", wp.Pose)
	if err != nil {
		return "", err
	}
	// The waypoint is consumed even when the move ends in a collision;
	// retrying the same goal after a bump is the caller's decision.
	if aerr := s.seq.Advance(); aerr != nil {
		return "", aerr
	}
	log.Info("waypoint done", "name", wp.Name, "cursor", s.seq.Cursor(), "outcome", outcome)
	return outcome, nil
}

func (s *Scout) drive(ctx context.Context, op string, goal spatial.Pose) (drive.Outcome, error) {
	outcome, err := s.driver.DriveTo(ctx, goal)
	if err != nil {
		recordError(op)
		return "", err
	}
	recordOutcome(op, outcome)
	return outcome, nil
}

func poseAttr(p spatial.Pose) []float64 {
	return []float64{p.X(), p.Y(), p.Yaw()}
}
