package bridge

import "github.com/ospreylabs/go-scout/pkg/spatial"

// Transform is the bridge's wire form of a frame-tree transform.
type Transform struct {
	Parent       string     `json:"parent"`
	Child        string     `json:"child"`
	Translation  [3]float64 `json:"translation"`
	RotationWXYZ [4]float64 `json:"rotation_wxyz"`
}

// Pose converts the wire transform to a spatial pose.
func (t Transform) Pose() spatial.Pose {
	return spatial.FromQuaternion(
		t.RotationWXYZ[0], t.RotationWXYZ[1], t.RotationWXYZ[2], t.RotationWXYZ[3],
		t.Translation[0], t.Translation[1], t.Translation[2],
	)
}

// VelocityCommand is one velocity frame on the command stream.
type VelocityCommand struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// CollisionStatus is the bridge's collision report.
type CollisionStatus struct {
	Collided bool `json:"collided"`
}
