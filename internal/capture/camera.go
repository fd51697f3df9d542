// Package capture adapts gocv video devices and files to the loop's
// non-blocking frame source contract.
package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"toonloop/internal/frame"
	"toonloop/internal/logger"
	"toonloop/internal/opencv/safe"
)

// Camera wraps a gocv.VideoCapture. Poll hands out an independently owned
// copy of the decoded frame so the capture buffer can be reused
// immediately; the returned frame belongs to the polling cycle.
type Camera struct {
	vc     *gocv.VideoCapture
	buf    gocv.Mat
	seq    uint64
	name   string
	logger logger.Logger

	mu     sync.Mutex
	closed bool
}

func OpenDevice(deviceID int, log logger.Logger) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("opening capture device %d: %w", deviceID, err)
	}

	cam := newCamera(vc, fmt.Sprintf("device:%d", deviceID), log)
	log.Info("Capture", "capture device opened", map[string]interface{}{
		"device_id": deviceID,
	})
	return cam, nil
}

func OpenFile(path string, log logger.Logger) (*Camera, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening video file %q: %w", path, err)
	}

	cam := newCamera(vc, "file:"+path, log)
	log.Info("Capture", "video file opened", map[string]interface{}{
		"path": path,
	})
	return cam, nil
}

func newCamera(vc *gocv.VideoCapture, name string, log logger.Logger) *Camera {
	return &Camera{
		vc:     vc,
		buf:    gocv.NewMat(),
		name:   name,
		logger: log,
	}
}

// Poll reads the next frame if one is available. Read failures, empty
// decodes and zero dimensions all report "not ready" rather than an error;
// the loop simply retries next tick.
func (c *Camera) Poll() (*frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}

	if ok := c.vc.Read(&c.buf); !ok || c.buf.Empty() {
		return nil, false
	}

	mat, err := safe.NewMatFromMat(c.buf)
	if err != nil {
		c.logger.Warning("Capture", "dropping undecodable frame", map[string]interface{}{
			"cause": err.Error(),
		})
		return nil, false
	}

	c.seq++
	return &frame.Frame{
		Mat:       mat,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now(),
		Seq:       c.seq,
	}, true
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.buf.Close()
	if err := c.vc.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.name, err)
	}

	c.logger.Info("Capture", "capture source closed", map[string]interface{}{
		"source": c.name,
	})
	return nil
}

// Shutdown satisfies the shutdown manager.
func (c *Camera) Shutdown() {
	if err := c.Close(); err != nil {
		c.logger.Error("Capture", err, nil)
	}
}
