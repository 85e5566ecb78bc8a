// Package bridge talks to the robot bridge: the process that serves frame
// transforms and collision state over HTTP and accepts velocity commands on
// a websocket stream.
//
// The bridge is an external collaborator; this client implements the
// controller-side contracts (locate.TransformLookup, drive.CollisionOracle,
// drive.VelocitySink) against it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ospreylabs/go-scout/internal/httpc"
	"github.com/ospreylabs/go-scout/internal/log"
	"github.com/ospreylabs/go-scout/pkg/drive"
	"github.com/ospreylabs/go-scout/pkg/locate"
	"github.com/ospreylabs/go-scout/pkg/spatial"
)

// ErrTransformUnavailable marks a failed transform lookup. The controllers
// propagate it immediately and abort the move without retrying.
var ErrTransformUnavailable = errors.New("bridge: transform unavailable")

// LookupError carries the frame pair of a failed lookup.
type LookupError struct {
	Parent string
	Child  string
	Err    error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("bridge: lookup %s->%s: %v", e.Parent, e.Child, e.Err)
}

// Unwrap returns the underlying error.
func (e *LookupError) Unwrap() error { return e.Err }

// Is reports ErrTransformUnavailable for errors.Is matching.
func (e *LookupError) Is(target error) bool { return target == ErrTransformUnavailable }

// Client is a bridge connection. Lookup and Collided are synchronous HTTP
// queries; Publish streams velocity frames over the websocket.
type Client struct {
	baseURL string
	http    *http.Client

	mu   sync.Mutex
	conn *websocket.Conn

	// collision state is polled every tick; a transport failure must not
	// spoof an abort, so errors keep the last known value.
	lastCollided bool
}

// Compile-time checks that the client satisfies the controller contracts.
var (
	_ locate.TransformLookup = (*Client)(nil)
	_ drive.CollisionOracle  = (*Client)(nil)
	_ drive.VelocitySink     = (*Client)(nil)
)

// Dial connects to the bridge at baseURL (http://host:port) and opens the
// velocity command stream.
func Dial(ctx context.Context, baseURL string) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Per-tick queries need short timeouts; the shared 30s default
		// would stall the control loop for seconds on a dead bridge.
		http: httpc.NewClient(2 * time.Second),
	}

	wsURL, err := c.commandStreamURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", wsURL, err)
	}
	c.conn = conn
	log.Info("bridge connected", "url", c.baseURL)
	return c, nil
}

func (c *Client) commandStreamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("bridge: parse url %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/cmd_vel"
	return u.String(), nil
}

// Close tears down the command stream.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Lookup resolves the parent->child transform from the bridge's frame tree.
func (c *Client) Lookup(parent, child string) (spatial.Pose, error) {
	u := fmt.Sprintf("%s/api/tf?parent=%s&child=%s",
		c.baseURL, url.QueryEscape(parent), url.QueryEscape(child))
	resp, err := c.http.Get(u)
	if err != nil {
		return spatial.Pose{}, &LookupError{Parent: parent, Child: child, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return spatial.Pose{}, &LookupError{
			Parent: parent, Child: child,
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	var tf Transform
	if err := json.NewDecoder(resp.Body).Decode(&tf); err != nil {
		return spatial.Pose{}, &LookupError{Parent: parent, Child: child, Err: err}
	}
	return tf.Pose(), nil
}

// Collided polls the bridge's collision oracle. Transport errors keep the
// last known value rather than fabricating an abort signal.
func (c *Client) Collided() bool {
	resp, err := c.http.Get(c.baseURL + "/api/collision")
	if err != nil {
		log.Warn("collision poll failed", "err", err)
		return c.lastKnownCollided()
	}
	defer resp.Body.Close()

	var status CollisionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Warn("collision poll decode failed", "err", err)
		return c.lastKnownCollided()
	}

	c.mu.Lock()
	c.lastCollided = status.Collided
	c.mu.Unlock()
	return status.Collided
}

func (c *Client) lastKnownCollided() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCollided
}

// Publish streams one velocity frame. Fire-and-forget: the bridge sends no
// acknowledgment, and write failures are logged rather than surfaced so the
// control loop's cadence is never blocked on transport state.
func (c *Client) Publish(linear, angular float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	cmd := VelocityCommand{Linear: linear, Angular: angular}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := c.conn.WriteJSON(cmd); err != nil {
		log.Warn("velocity publish failed", "err", err)
	}
}
