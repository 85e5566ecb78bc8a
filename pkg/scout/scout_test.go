package scout

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/locate"
	"github.com/ospreylabs/go-scout/pkg/spatial"
	"github.com/ospreylabs/go-scout/pkg/trajectory"
)

// harness closes the loop end to end: the transform lookup serves the pose
// of a simulated unicycle, and the virtual-clock ticker integrates whatever
// the controller last published.
type harness struct {
	t *testing.T

	mu        sync.Mutex
	pose      spatial.Pose
	collided  bool
	published [][2]float64
	ticks     int
	maxTicks  int

	// block, when non-nil, parks the move loop inside Wait until closed.
	// started fires once when the loop first reaches Wait.
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func newHarness(t *testing.T, start spatial.Pose) *harness {
	return &harness{t: t, pose: start, maxTicks: 5000}
}

func (h *harness) Lookup(parent, child string) (spatial.Pose, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pose, nil
}

func (h *harness) Collided() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.collided
}

func (h *harness) setCollided(v bool) {
	h.mu.Lock()
	h.collided = v
	h.mu.Unlock()
}

func (h *harness) Publish(linear, angular float64) {
	h.mu.Lock()
	h.published = append(h.published, [2]float64{linear, angular})
	h.mu.Unlock()
}

func (h *harness) Wait() {
	if h.block != nil {
		h.once.Do(func() { close(h.started) })
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks++
	if h.ticks > h.maxTicks {
		panic("harness: controller did not converge")
	}
	if len(h.published) == 0 {
		return
	}
	const dt = 1.0 / 20.0
	cmd := h.published[len(h.published)-1]
	yaw := h.pose.Yaw() + cmd[1]*dt
	x := h.pose.X() + cmd[0]*math.Cos(yaw)*dt
	y := h.pose.Y() + cmd[0]*math.Sin(yaw)*dt
	h.pose = spatial.FromXYYaw(x, y, yaw)
}

func (h *harness) Stop() {}

func (h *harness) currentPose() spatial.Pose {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pose
}

func (h *harness) firstCommand() [2]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.published) == 0 {
		h.t.Fatal("no commands published")
	}
	return h.published[0]
}

var harnessFrames = locate.Frames{Global: "map", Robot: "base_link", Odom: "odom"}

func newScout(h *harness, waypoints []trajectory.Waypoint) *Scout {
	est := locate.New(h, locate.GroundTruth, harnessFrames)
	driver := drive.New(est, h, h, drive.Config{
		NewTicker: func() drive.Ticker { return h },
	})
	return New(est, driver, trajectory.New(waypoints))
}

func TestScout_MoveByDistance(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	s := newScout(h, nil)

	outcome, err := s.MoveByDistance(context.Background(), 1.0)
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)

	final := h.currentPose()
	assert.InDelta(t, 1.0, final.X(), 0.02)
	assert.InDelta(t, 0.0, final.Y(), 0.02)
}

func TestScout_MoveByDistanceAlongHeading(t *testing.T) {
	// Facing +Y, a forward move must translate along +Y, not +X.
	h := newHarness(t, spatial.FromXYYaw(2, 2, math.Pi/2))
	s := newScout(h, nil)

	outcome, err := s.MoveByDistance(context.Background(), 1.0)
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)

	final := h.currentPose()
	assert.InDelta(t, 2.0, final.X(), 0.02)
	assert.InDelta(t, 3.0, final.Y(), 0.02)
}

func TestScout_MoveByNegativeDistanceReverses(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	s := newScout(h, nil)

	outcome, err := s.MoveByDistance(context.Background(), -1.0)
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)

	assert.Negative(t, h.firstCommand()[0], "goal behind must command reverse")
	assert.InDelta(t, -1.0, h.currentPose().X(), 0.02)
}

func TestScout_MoveByAngle(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	s := newScout(h, nil)

	outcome, err := s.MoveByAngle(context.Background(), math.Pi/2)
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)

	final := h.currentPose()
	assert.InDelta(t, math.Pi/2, final.Yaw(), 2*math.Pi/180)
	assert.InDelta(t, 0.0, final.X(), 1e-9, "in-place rotation must not translate")
	assert.InDelta(t, 0.0, final.Y(), 1e-9)
}

func TestScout_MoveToPoseIsAbsolute(t *testing.T) {
	// Starting away from the origin: the named pose is a goal in the
	// global frame, not an offset from the current pose.
	h := newHarness(t, spatial.FromXYYaw(3, 0, 0))
	s := newScout(h, nil)

	goal := spatial.FromXYYaw(4, 0, 0)
	outcome, err := s.MoveToPose(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)
	assert.InDelta(t, 4.0, h.currentPose().X(), 0.02)
}

func TestScout_MoveRelative(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(1, 0, math.Pi/2))
	s := newScout(h, nil)

	outcome, err := s.MoveRelative(context.Background(), spatial.FromXYYaw(0.5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)

	final := h.currentPose()
	assert.InDelta(t, 1.0, final.X(), 0.02)
	assert.InDelta(t, 0.5, final.Y(), 0.02)
}

func TestScout_WaypointTrajectory(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	s := newScout(h, []trajectory.Waypoint{
		{Name: "wp0", Pose: spatial.FromXYYaw(0.5, 0, 0)},
		{Name: "wp1", Pose: spatial.FromXYYaw(1.0, 0, 0)},
		{Name: "wp2", Pose: spatial.FromXYYaw(1.5, 0, 0)},
	})

	for i := 0; i < 3; i++ {
		outcome, err := s.MoveToNextWaypoint(context.Background())
		require.NoError(t, err, "waypoint %d", i)
		require.Equal(t, drive.Succeeded, outcome, "waypoint %d", i)
		assert.Equal(t, i+1, s.seq.Cursor())
	}
	assert.InDelta(t, 1.5, h.currentPose().X(), 0.02)

	// Fourth call: exhausted, cursor untouched, no commands issued.
	before := len(h.published)
	outcome, err := s.MoveToNextWaypoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, drive.Exhausted, outcome)
	assert.Equal(t, 3, s.seq.Cursor())
	assert.Equal(t, before, len(h.published), "exhausted dispatch must not command velocity")
}

func TestScout_CollisionOutcome(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	h.setCollided(true)
	s := newScout(h, nil)

	outcome, err := s.MoveByDistance(context.Background(), 1.0)
	require.NoError(t, err)
	assert.Equal(t, drive.Collided, outcome)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.published, 1)
	assert.Equal(t, [2]float64{0, 0}, h.published[0])
}

func TestScout_SingleFlightGuard(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	h.block = make(chan struct{})
	h.started = make(chan struct{})
	s := newScout(h, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome, err := s.MoveByDistance(context.Background(), 1.0)
		assert.NoError(t, err)
		assert.Equal(t, drive.Collided, outcome)
	}()

	<-h.started
	assert.True(t, s.Busy())
	_, err := s.MoveByAngle(context.Background(), 1.0)
	assert.ErrorIs(t, err, ErrMoveInProgress)

	// Let the first move finish via the collision signal.
	h.setCollided(true)
	close(h.block)
	<-done
	assert.False(t, s.Busy())
}

func TestScout_NewEpisodeResets(t *testing.T) {
	h := newHarness(t, spatial.FromXYYaw(0, 0, 0))
	s := newScout(h, []trajectory.Waypoint{
		{Name: "wp0", Pose: spatial.FromXYYaw(0.5, 0, 0)},
	})

	first := s.EpisodeID()
	require.NotEmpty(t, first)

	outcome, err := s.MoveToNextWaypoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, drive.Succeeded, outcome)
	outcome, err = s.MoveToNextWaypoint(context.Background())
	require.NoError(t, err)
	require.Equal(t, drive.Exhausted, outcome)

	second := s.NewEpisode()
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, s.EpisodeID())
	assert.Equal(t, 0, s.seq.Cursor())

	// The trajectory is walkable again.
	outcome, err = s.MoveToNextWaypoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, drive.Succeeded, outcome)
}
