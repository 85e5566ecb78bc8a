// Package drive implements the closed-loop motion controllers for the base.
//
// The drive-to-pose controller is the polar-coordinate unicycle regulator
// from Robotics, Vision & Control (Corke, 2nd ed., p. 108), extended to
// reverse into goals that lie behind the robot. The orientation controller
// servos heading alone and doubles as the terminal phase of a pose move.
package drive

import (
	"context"
	"math"

	"github.com/ospreylabs/go-scout/internal/log"
	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// Regulator gains. Their relative magnitudes satisfy the stability
// conditions of the underlying control law (Krho > 0, Kbeta < 0,
// Kalpha - Krho > 0); do not tune them independently.
const (
	KRho   = 0.7
	KAlpha = 7.5
	KBeta  = -3.0

	// KAngle is the orientation-only servo gain.
	KAngle = 3.0
)

// Outcome is the terminal result of a move.
type Outcome string

const (
	// Succeeded means the controller converged within tolerance.
	Succeeded Outcome = "succeeded"

	// Collided means the collision oracle fired; the robot was stopped.
	Collided Outcome = "collided"

	// Exhausted means the trajectory has no further waypoints.
	Exhausted Outcome = "exhausted"
)

// PoseSource serves the robot's current pose estimate.
type PoseSource interface {
	Current() (spatial.Pose, error)
}

// CollisionOracle reports whether the robot has struck an obstacle. It is
// polled once per tick and is the sole in-loop abort signal besides context
// cancellation.
type CollisionOracle interface {
	Collided() bool
}

// VelocitySink accepts velocity commands. Publish is fire-and-forget; there
// is no acknowledgment from the base.
type VelocitySink interface {
	Publish(linear, angular float64)
}

// SinkFunc adapts a function to a VelocitySink.
type SinkFunc func(linear, angular float64)

// Publish implements VelocitySink.
func (f SinkFunc) Publish(linear, angular float64) { f(linear, angular) }

// Config tunes the move loop. Zero fields take the documented defaults.
type Config struct {
	SpeedFactor float64 // velocity scale, default 1
	RateHz      float64 // tick frequency, default 20
	DistTol     float64 // convergence distance, default 0.01
	YawTol      float64 // convergence heading in radians, default 1 degree

	// NewTicker overrides the tick source, letting tests run the loop on
	// a virtual clock. Defaults to a wall-clock ticker at RateHz.
	NewTicker func() Ticker
}

func (c Config) withDefaults() Config {
	if c.SpeedFactor == 0 {
		c.SpeedFactor = 1
	}
	if c.RateHz == 0 {
		c.RateHz = 20
	}
	if c.DistTol == 0 {
		c.DistTol = 0.01
	}
	if c.YawTol == 0 {
		c.YawTol = 1 * math.Pi / 180
	}
	return c
}

// Controller runs fixed-rate servo loops against a goal pose. One loop owns
// the velocity sink for its whole duration; callers serialize moves.
type Controller struct {
	pose      PoseSource
	collision CollisionOracle
	vel       VelocitySink
	cfg       Config

	// newTicker is swapped out by tests for a virtual clock.
	newTicker func() Ticker
}

// New builds a controller over the given collaborators.
func New(pose PoseSource, collision CollisionOracle, vel VelocitySink, cfg Config) *Controller {
	c := &Controller{
		pose:      pose,
		collision: collision,
		vel:       vel,
		cfg:       cfg.withDefaults(),
	}
	c.newTicker = c.cfg.NewTicker
	if c.newTicker == nil {
		c.newTicker = func() Ticker { return NewRateTicker(c.cfg.RateHz) }
	}
	return c
}

// DriveTo servos the base to the goal pose, then hands off to TurnTo for the
// final heading alignment. Every exit path publishes a final zero-velocity
// command, including errors and context cancellation.
func (c *Controller) DriveTo(ctx context.Context, goal spatial.Pose) (Outcome, error) {
	tick := c.newTicker()
	defer tick.Stop()
	defer c.vel.Publish(0, 0)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if c.collision.Collided() {
			log.Warn("drive aborted by collision")
			return Collided, nil
		}

		current, err := c.pose.Current()
		if err != nil {
			return "", err
		}

		rho := spatial.Distance(current, goal)
		alpha := spatial.Wrap(spatial.Bearing(current, goal) - current.Yaw())
		beta := spatial.Wrap(goal.Yaw() - spatial.Bearing(current, goal))

		// A goal beyond +/-90 degrees in the body frame is behind the
		// robot: flip both angles so the regulator steers the tail in.
		// Exactly 90 degrees drives forward.
		reverse := math.Abs(spatial.BearingFrom(current, goal)) > math.Pi/2
		if reverse {
			alpha = spatial.Wrap(alpha + math.Pi)
			beta = spatial.Wrap(beta + math.Pi)
		}

		// Inside the distance tolerance the regulator would stall while
		// pointed the wrong way; finish by servoing heading alone.
		if rho < c.cfg.DistTol {
			return c.TurnTo(ctx, goal)
		}

		direction := 1.0
		if reverse {
			direction = -1
		}
		linear := c.cfg.SpeedFactor * direction * KRho * rho
		angular := c.cfg.SpeedFactor * (KAlpha*alpha + KBeta*beta)
		c.vel.Publish(linear, angular)
		tick.Wait()
	}
}

// TurnTo servos heading alone until the yaw error to the goal's orientation
// falls inside tolerance. Same tick loop, collision check, and
// zero-velocity-on-exit guarantee as DriveTo.
func (c *Controller) TurnTo(ctx context.Context, goal spatial.Pose) (Outcome, error) {
	tick := c.newTicker()
	defer tick.Stop()
	defer c.vel.Publish(0, 0)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if c.collision.Collided() {
			log.Warn("turn aborted by collision")
			return Collided, nil
		}

		current, err := c.pose.Current()
		if err != nil {
			return "", err
		}

		yawErr := spatial.Wrap(goal.Yaw() - current.Yaw())
		if math.Abs(yawErr) < c.cfg.YawTol {
			return Succeeded, nil
		}

		c.vel.Publish(0, c.cfg.SpeedFactor*KAngle*yawErr)
		tick.Wait()
	}
}
