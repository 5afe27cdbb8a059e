// -*- tab-width:2 -*-

package netchan

import (
	"encoding/binary"
	"math"
	"os"
	"sync"
	"time"
)

const captureHeaderLen = 12

// Capture appends every ingested payload to a binary traffic log:
// big-endian float64 unix timestamp, uint32 payload length, raw
// bytes. The format matches the traffic logs written by the TUN
// readers so one toolchain can read both.
type Capture struct {
	mu sync.Mutex
	f  *os.File
}

// OpenCapture opens (appending) or creates the traffic log at path.
func OpenCapture(path string) (*Capture, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Capture{f: f}, nil
}

// Log appends one payload record. Safe for concurrent use.
func (c *Capture) Log(payload []byte) error {
	header := make([]byte, captureHeaderLen)
	ts := float64(time.Now().UnixNano()) / float64(time.Second)
	binary.BigEndian.PutUint64(header, math.Float64bits(ts))
	binary.BigEndian.PutUint32(header[8:], uint32(len(payload)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.f.Write(header); err != nil {
		return err
	}

	_, err := c.f.Write(payload)

	return err
}

// Close flushes and closes the log file.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.f.Close()
}
