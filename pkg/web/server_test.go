package web

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/locate"
	"github.com/ospreylabs/go-scout/pkg/scout"
	"github.com/ospreylabs/go-scout/pkg/spatial"
	"github.com/ospreylabs/go-scout/pkg/trajectory"
)

// fakeWorld backs the API tests with a simulated base on a virtual clock.
type fakeWorld struct {
	mu        sync.Mutex
	pose      spatial.Pose
	collided  bool
	published [][2]float64
}

func (w *fakeWorld) Lookup(parent, child string) (spatial.Pose, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pose, nil
}

func (w *fakeWorld) Collided() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collided
}

func (w *fakeWorld) Publish(linear, angular float64) {
	w.mu.Lock()
	w.published = append(w.published, [2]float64{linear, angular})
	w.mu.Unlock()
}

func (w *fakeWorld) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.published) == 0 {
		return
	}
	const dt = 1.0 / 20.0
	cmd := w.published[len(w.published)-1]
	yaw := w.pose.Yaw() + cmd[1]*dt
	x := w.pose.X() + cmd[0]*math.Cos(yaw)*dt
	y := w.pose.Y() + cmd[0]*math.Sin(yaw)*dt
	w.pose = spatial.FromXYYaw(x, y, yaw)
}

func (w *fakeWorld) Stop() {}

func newTestServer(t *testing.T, waypoints []trajectory.Waypoint) (*Server, *fakeWorld) {
	t.Helper()
	w := &fakeWorld{pose: spatial.FromXYYaw(0, 0, 0)}
	est := locate.New(w, locate.GroundTruth, locate.Frames{
		Global: "map", Robot: "base_link", Odom: "odom",
	})
	driver := drive.New(est, w, w, drive.Config{
		NewTicker: func() drive.Ticker { return w },
	})
	sc := scout.New(est, driver, trajectory.New(waypoints))
	return NewServer("0", sc, nil), w
}

func postJSON(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, s *Server, path string, out any) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func decodeOutcome(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Outcome
}

func TestServer_Pose(t *testing.T) {
	s, w := newTestServer(t, nil)
	w.pose = spatial.FromXYYaw(1, 2, math.Pi/2)

	var payload posePayload
	resp := getJSON(t, s, "/api/pose", &payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1.0, payload.XYZ[0], 1e-9)
	assert.InDelta(t, 2.0, payload.XYZ[1], 1e-9)
	assert.InDelta(t, math.Pi/2, payload.Yaw, 1e-9)
}

func TestServer_MoveDistance(t *testing.T) {
	s, w := newTestServer(t, nil)

	resp := postJSON(t, s, "/api/move/distance", map[string]any{"distance": 1.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", decodeOutcome(t, resp))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.InDelta(t, 1.0, w.pose.X(), 0.02)
}

func TestServer_MoveAngle(t *testing.T) {
	s, w := newTestServer(t, nil)

	resp := postJSON(t, s, "/api/move/angle", map[string]any{"angle_deg": 90})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", decodeOutcome(t, resp))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.InDelta(t, math.Pi/2, w.pose.Yaw(), 2*math.Pi/180)
}

func TestServer_MovePoseRequiresRotation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := postJSON(t, s, "/api/move/pose", map[string]any{
		"translation_xyz": []float64{1, 0, 0},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_MovePose(t *testing.T) {
	s, w := newTestServer(t, nil)
	resp := postJSON(t, s, "/api/move/pose", map[string]any{
		"translation_xyz": []float64{0.5, 0, 0},
		"rotation_wxyz":   []float64{1, 0, 0, 0},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", decodeOutcome(t, resp))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.InDelta(t, 0.5, w.pose.X(), 0.02)
}

func TestServer_MoveNextExhausted(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := postJSON(t, s, "/api/move/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "exhausted", decodeOutcome(t, resp))
}

func TestServer_MoveNextWalksWaypoints(t *testing.T) {
	s, w := newTestServer(t, []trajectory.Waypoint{
		{Name: "wp0", Pose: spatial.FromXYYaw(0.5, 0, 0)},
	})
	var status struct {
		Remaining int `json:"waypoints_remaining"`
	}
	getJSON(t, s, "/api/status", &status)
	assert.Equal(t, 1, status.Remaining)

	resp := postJSON(t, s, "/api/move/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", decodeOutcome(t, resp))

	w.mu.Lock()
	x := w.pose.X()
	w.mu.Unlock()
	assert.InDelta(t, 0.5, x, 0.02)

	getJSON(t, s, "/api/status", &status)
	assert.Equal(t, 0, status.Remaining)

	resp = postJSON(t, s, "/api/move/next", nil)
	assert.Equal(t, "exhausted", decodeOutcome(t, resp))
}

func TestServer_StatusAndEpisode(t *testing.T) {
	s, _ := newTestServer(t, nil)

	var status struct {
		Episode string `json:"episode"`
		Busy    bool   `json:"busy"`
	}
	resp := getJSON(t, s, "/api/status", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, status.Episode)
	assert.False(t, status.Busy)

	var ep struct {
		Episode string `json:"episode"`
	}
	resp = postJSON(t, s, "/api/episode", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ep))
	assert.NotEqual(t, status.Episode, ep.Episode)
}

func TestServer_NamedPosesIncludeInitial(t *testing.T) {
	s, w := newTestServer(t, nil)
	w.pose = spatial.FromXYYaw(3, 1, 0)

	var poses map[string]posePayload
	resp := getJSON(t, s, "/api/poses", &poses)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, poses, "initial_pose")
	assert.InDelta(t, 3.0, poses["initial_pose"].XYZ[0], 1e-9)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scout_control_velocity_commands_total")
}

func TestServer_BadBody(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/move/distance", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
