// Package config provides the validated configuration for go-scout.
//
// Configuration is loaded once at startup from a YAML file with environment
// overrides. Safety-relevant fields (frame names, localization mode) have no
// defaults and fail validation when absent; tuning fields carry documented
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// Localization selects how the pose estimator composes the robot's pose.
type Localization string

const (
	// LocalizationGroundTruth reads the privileged global->robot transform
	// directly from the frame tree.
	LocalizationGroundTruth Localization = "ground_truth"

	// LocalizationNoisy layers accumulated odometry on a memoized initial
	// pose, so drift builds up the way it would on a real platform.
	LocalizationNoisy Localization = "noisy"
)

// Defaults for tuning fields. These are silently applied when the config
// file leaves them unset.
const (
	DefaultSpeedFactor = 1.0
	DefaultRateHz      = 20.0
	DefaultDistTol     = 0.01 // length units
	DefaultYawTolDeg   = 1.0  // degrees; converted to radians internally
	DefaultAPIPort     = "8080"
	DefaultBridgeURL   = "http://127.0.0.1:9090"
)

// Sentinel errors for missing safety-relevant fields.
var (
	ErrMissingGlobalFrame = errors.New("config: robot.global_frame is required")
	ErrMissingRobotFrame  = errors.New("config: robot.robot_frame is required")
	ErrMissingOdomFrame   = errors.New("config: robot.odom_frame is required")
	ErrBadLocalization    = errors.New(`config: task.localization must be "ground_truth" or "noisy"`)
)

// RobotConfig names the coordinate frames and motion scaling for the base.
type RobotConfig struct {
	GlobalFrame string  `yaml:"global_frame"` // required
	RobotFrame  string  `yaml:"robot_frame"`  // required
	OdomFrame   string  `yaml:"odom_frame"`   // required
	SpeedFactor float64 `yaml:"speed_factor"` // default 1

	// NamedFrames are additional frames resolvable through the pose API.
	NamedFrames []string `yaml:"named_frames"`
}

// TaskConfig selects the localization regime for the current task.
type TaskConfig struct {
	Localization Localization `yaml:"localization"` // required
}

// ControlConfig tunes the fixed-rate move loop.
type ControlConfig struct {
	RateHz    float64 `yaml:"rate_hz"`     // default 20
	DistTol   float64 `yaml:"dist_tol"`    // default 0.01
	YawTolDeg float64 `yaml:"yaw_tol_deg"` // default 1
}

// BridgeConfig locates the robot bridge that serves transforms and accepts
// velocity commands.
type BridgeConfig struct {
	URL string `yaml:"url"` // default http://127.0.0.1:9090
}

// APIConfig configures the host-facing HTTP surface.
type APIConfig struct {
	Port string `yaml:"port"` // default 8080
}

// Waypoint is one pose in the configured trajectory: a translation plus a
// unit quaternion in (w, x, y, z) order.
type Waypoint struct {
	Name string     `yaml:"name"`
	XYZ  [3]float64 `yaml:"xyz"`
	WXYZ [4]float64 `yaml:"wxyz"`
}

// Pose converts the waypoint to a spatial pose.
func (w Waypoint) Pose() spatial.Pose {
	return spatial.FromQuaternion(
		w.WXYZ[0], w.WXYZ[1], w.WXYZ[2], w.WXYZ[3],
		w.XYZ[0], w.XYZ[1], w.XYZ[2],
	)
}

// Config is the root configuration, populated once at startup.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	Robot     RobotConfig   `yaml:"robot"`
	Task      TaskConfig    `yaml:"task"`
	Control   ControlConfig `yaml:"control"`
	Bridge    BridgeConfig  `yaml:"bridge"`
	API       APIConfig     `yaml:"api"`
	Waypoints []Waypoint    `yaml:"waypoints"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets deployment scripts override endpoints without editing the
// config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCOUT_BRIDGE_URL"); v != "" {
		c.Bridge.URL = v
	}
	if v := os.Getenv("SCOUT_API_PORT"); v != "" {
		c.API.Port = v
	}
	if v := os.Getenv("SCOUT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Robot.SpeedFactor == 0 {
		c.Robot.SpeedFactor = DefaultSpeedFactor
	}
	if c.Control.RateHz == 0 {
		c.Control.RateHz = DefaultRateHz
	}
	if c.Control.DistTol == 0 {
		c.Control.DistTol = DefaultDistTol
	}
	if c.Control.YawTolDeg == 0 {
		c.Control.YawTolDeg = DefaultYawTolDeg
	}
	if c.Bridge.URL == "" {
		c.Bridge.URL = DefaultBridgeURL
	}
	if c.API.Port == "" {
		c.API.Port = DefaultAPIPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate fails fast on safety-relevant fields. A controller with the wrong
// frame names servos against garbage transforms, so these never default.
func (c *Config) Validate() error {
	if c.Robot.GlobalFrame == "" {
		return ErrMissingGlobalFrame
	}
	if c.Robot.RobotFrame == "" {
		return ErrMissingRobotFrame
	}
	if c.Robot.OdomFrame == "" {
		return ErrMissingOdomFrame
	}
	switch c.Task.Localization {
	case LocalizationGroundTruth, LocalizationNoisy:
	default:
		return fmt.Errorf("%w (got %q)", ErrBadLocalization, c.Task.Localization)
	}
	for i, wp := range c.Waypoints {
		if wp.WXYZ == ([4]float64{}) {
			return fmt.Errorf("config: waypoint %d (%s): zero quaternion", i, wp.Name)
		}
	}
	return nil
}
