package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Source provides frames of the roasting beans. Acquire is called once per
// session and Release exactly once after a successful Acquire.
type Source interface {
	Acquire(ctx context.Context) error
	Capture(ctx context.Context) ([]byte, error)
	Release() error
}

var errNotAcquired = errors.New("source not acquired")

// SimulatedCamera produces synthetic frames.
type SimulatedCamera struct {
	// AcquireErr, when set, is returned by Acquire.
	AcquireErr error

	mu       sync.Mutex
	acquired bool
	frames   int
	releases int
}

func (c *SimulatedCamera) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AcquireErr != nil {
		return c.AcquireErr
	}
	if c.acquired {
		return errors.New("camera already in use")
	}
	c.acquired = true
	return nil
}

func (c *SimulatedCamera) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return nil, errNotAcquired
	}
	c.frames++
	return []byte(fmt.Sprintf("frame-%d", c.frames)), nil
}

func (c *SimulatedCamera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquired {
		return errNotAcquired
	}
	c.acquired = false
	c.releases++
	return nil
}

// Releases reports how many times the camera was released.
func (c *SimulatedCamera) Releases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// Acquired reports whether the camera is currently held.
func (c *SimulatedCamera) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}
