// Package jpth drives a JPTH-13M-PoE pan/tilt camera mount over its
// HTTP control interface.
package jpth

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"regexp"
	"sync"
	"time"
)

const (
	// Each jog unit moves 0.35 degrees, per the JPTH-13M-PoE manual.
	degreesPerJog = 0.35
	// Jog forces accepted by the mount.
	maxForce = 31
	// Forces above this overshoot badly between polls, so the
	// proportional term is clamped well below the hardware maximum.
	maxJog = 8
	// Smallest force that actually moves the mount.
	minJog = 1
)

// Client commands the mount by issuing jog forces toward a target and
// reading back the reported position. It implements rotator.Mount.
type Client struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	havePos bool
	pan     float64
	tilt    float64
}

func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type cpUpdate struct {
	XMLName xml.Name `xml:"CP_Update"`
	PanPos  float64  `xml:"PanPos"`
	TiltPos float64  `xml:"TiltPos"`
}

// The camera races against itself writing CP_Update.xml: if polled too
// fast, the CPStatusMsg element near the end is sometimes truncated.
// Everything after </AutoPatrol> is garbage we don't need, so strip it
// before decoding.
var statusTailRE = regexp.MustCompile(`(?s)</AutoPatrol>.*</CP_Update>`)

// command sends one jog force pair and returns the position the mount
// reported back. Forces of zero are a pure position poll.
func (c *Client) command(ctx context.Context, panForce, tiltForce int) (pan, tilt float64, err error) {
	panForce = clampForce(panForce)
	tiltForce = clampForce(tiltForce)
	url := fmt.Sprintf("%s/CP_Update.xml?PCmd=%d&TCmd=%d", c.endpoint, panForce, tiltForce)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("commanding mount: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("reading mount response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("bad status code: %s", resp.Status)
	}
	body = statusTailRE.ReplaceAll(body, []byte("</AutoPatrol></CP_Update>"))
	var update cpUpdate
	if err := xml.Unmarshal(body, &update); err != nil {
		return 0, 0, fmt.Errorf("parsing mount response: %w", err)
	}
	c.mu.Lock()
	c.havePos = true
	c.pan = update.PanPos
	c.tilt = update.TiltPos
	c.mu.Unlock()
	return update.PanPos, update.TiltPos, nil
}

// Position polls the mount without moving it.
func (c *Client) Position(ctx context.Context) (pan, tilt float64, err error) {
	return c.command(ctx, 0, 0)
}

// SetTarget jogs the mount one step toward the given pan and tilt. The
// mount has no absolute-position command, so each call moves it a
// bounded amount and repeated calls converge on the target.
func (c *Client) SetTarget(ctx context.Context, pan, tilt float64) error {
	c.mu.Lock()
	havePos, curPan, curTilt := c.havePos, c.pan, c.tilt
	c.mu.Unlock()
	if !havePos {
		var err error
		curPan, curTilt, err = c.command(ctx, 0, 0)
		if err != nil {
			return err
		}
	}
	pj := jogToward(curPan, pan)
	tj := jogToward(curTilt, tilt)
	log.Printf("at (%.1f, %.1f), want (%.1f, %.1f), pan by %d, tilt by %d", curPan, curTilt, pan, tilt, pj, tj)
	_, _, err := c.command(ctx, pj, tj)
	return err
}

// jogToward returns a jog force moving current toward target,
// proportional to the remaining distance.
func jogToward(current, target float64) int {
	// Round to the mount's reported precision so floats can be equal.
	diff := math.Round(target*10)/10 - math.Round(current*10)/10
	change := diff / degreesPerJog
	if change > maxJog {
		change = maxJog
	} else if change < -maxJog {
		change = -maxJog
	}
	if change != 0 && math.Abs(change) < minJog {
		// The minimum jog that does anything.
		if change > 0 {
			change = minJog
		} else {
			change = -minJog
		}
	}
	return int(change)
}

func clampForce(force int) int {
	if force > maxForce {
		return maxForce
	}
	if force < -maxForce {
		return -maxForce
	}
	return force
}
