package web

import (
	"errors"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ospreylabs/go-scout/pkg/bridge"
	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/scout"
	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// posePayload is the wire form of a pose in API responses.
type posePayload struct {
	XYZ  [3]float64 `json:"translation_xyz"`
	RPY  [3]float64 `json:"rotation_rpy"`
	WXYZ [4]float64 `json:"rotation_wxyz"`
	Yaw  float64    `json:"yaw"`
}

func encodePose(p spatial.Pose) posePayload {
	roll, pitch, yaw := p.RPY()
	w, x, y, z := p.Quaternion()
	return posePayload{
		XYZ:  [3]float64{p.X(), p.Y(), p.Z()},
		RPY:  [3]float64{roll, pitch, yaw},
		WXYZ: [4]float64{w, x, y, z},
		Yaw:  p.Yaw(),
	}
}

// moveResponse maps a finished (or failed) move to an HTTP response.
func (s *Server) moveResponse(c *fiber.Ctx, outcome drive.Outcome, err error) error {
	switch {
	case errors.Is(err, scout.ErrMoveInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, bridge.ErrTransformUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"outcome": outcome})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"episode":             s.scout.EpisodeID(),
		"busy":                s.scout.Busy(),
		"waypoints_remaining": s.scout.WaypointsRemaining(),
		"uptime_seconds":      int(time.Since(s.started).Seconds()),
		"telemetry_clients":   s.telemetry.ClientCount(),
	})
}

func (s *Server) handlePose(c *fiber.Ctx) error {
	p, err := s.scout.CurrentPose()
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(encodePose(p))
}

// handleNamedPoses resolves the configured named frames plus the episode's
// initial pose, all under the active localization mode.
func (s *Server) handleNamedPoses(c *fiber.Ctx) error {
	poses := make(map[string]posePayload, len(s.namedFrames)+1)
	for _, frame := range s.namedFrames {
		p, err := s.scout.PoseOf(frame)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(), "frame": frame,
			})
		}
		poses[frame] = encodePose(p)
	}
	initial, err := s.scout.InitialPose()
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	poses["initial_pose"] = encodePose(initial)
	return c.JSON(poses)
}

func (s *Server) handleNewEpisode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"episode": s.scout.NewEpisode()})
}

type moveDistanceRequest struct {
	Distance float64 `json:"distance"`
}

func (s *Server) handleMoveDistance(c *fiber.Ctx) error {
	var req moveDistanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	outcome, err := s.scout.MoveByDistance(c.UserContext(), req.Distance)
	return s.moveResponse(c, outcome, err)
}

type moveAngleRequest struct {
	AngleDeg float64 `json:"angle_deg"`
}

func (s *Server) handleMoveAngle(c *fiber.Ctx) error {
	var req moveAngleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	outcome, err := s.scout.MoveByAngle(c.UserContext(), req.AngleDeg*math.Pi/180)
	return s.moveResponse(c, outcome, err)
}

type movePoseRequest struct {
	XYZ  [3]float64 `json:"translation_xyz"`
	WXYZ [4]float64 `json:"rotation_wxyz"`
}

func (s *Server) handleMovePose(c *fiber.Ctx) error {
	var req movePoseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.WXYZ == ([4]float64{}) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rotation_wxyz is required"})
	}
	goal := spatial.FromQuaternion(
		req.WXYZ[0], req.WXYZ[1], req.WXYZ[2], req.WXYZ[3],
		req.XYZ[0], req.XYZ[1], req.XYZ[2],
	)
	outcome, err := s.scout.MoveToPose(c.UserContext(), goal)
	return s.moveResponse(c, outcome, err)
}

// moveRelativeRequest accepts a translation plus either a yaw (degrees) or a
// quaternion. Yaw wins when both are present; missing rotation means none.
type moveRelativeRequest struct {
	XYZ    [3]float64  `json:"trans_xyz"`
	YawDeg *float64    `json:"rot_yaw_deg"`
	WXYZ   *[4]float64 `json:"rot_wxyz"`
}

func (s *Server) handleMoveRelative(c *fiber.Ctx) error {
	var req moveRelativeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var rel spatial.Pose
	switch {
	case req.YawDeg != nil:
		rel = spatial.FromTranslationRPY(
			req.XYZ[0], req.XYZ[1], req.XYZ[2],
			0, 0, *req.YawDeg*math.Pi/180,
		)
	case req.WXYZ != nil:
		rel = spatial.FromQuaternion(
			req.WXYZ[0], req.WXYZ[1], req.WXYZ[2], req.WXYZ[3],
			req.XYZ[0], req.XYZ[1], req.XYZ[2],
		)
	default:
		rel = spatial.FromTranslationRPY(req.XYZ[0], req.XYZ[1], req.XYZ[2], 0, 0, 0)
	}

	outcome, err := s.scout.MoveRelative(c.UserContext(), rel)
	return s.moveResponse(c, outcome, err)
}

func (s *Server) handleMoveNext(c *fiber.Ctx) error {
	outcome, err := s.scout.MoveToNextWaypoint(c.UserContext())
	return s.moveResponse(c, outcome, err)
}
