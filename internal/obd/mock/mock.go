package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"vdt/internal/models"
	"vdt/internal/obd"
)

// ErrQuery is returned by GetDTCs when the mock is configured to fail queries.
var ErrQuery = errors.New("mock: query failed")

// Config scripts the behaviour of the mock adapter.
type Config struct {
	Codes       []models.TroubleCode
	FailConnect bool
	FailQuery   bool
	// Delay is spent in Open to imitate a slow adapter.
	Delay time.Duration
}

// MockOBD is a scripted implementation of obd.OBDProvider used for demo and testing.
type MockOBD struct {
	mu      sync.Mutex
	cfg     Config
	opens   int
	queries int
	closes  int
}

func New(cfg Config) *MockOBD {
	return &MockOBD{cfg: cfg}
}

func (m *MockOBD) Open(ctx context.Context) (obd.Connection, error) {
	if m.cfg.Delay > 0 {
		select {
		case <-time.After(m.cfg.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++

	status := obd.StatusCarConnected
	if m.cfg.FailConnect {
		status = obd.StatusNotConnected
	}
	return &conn{owner: m, status: status}, nil
}

// Opens returns how many sessions were opened.
func (m *MockOBD) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Queries returns how many DTC requests were issued.
func (m *MockOBD) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

// Closes returns how many sessions were closed.
func (m *MockOBD) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type conn struct {
	owner  *MockOBD
	status obd.Status
	closed bool
}

func (c *conn) Status() obd.Status {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	return c.status
}

func (c *conn) GetDTCs(ctx context.Context) ([]models.TroubleCode, error) {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	c.owner.queries++
	if c.closed || c.status == obd.StatusNotConnected {
		return nil, errors.New("mock: not connected")
	}
	if c.owner.cfg.FailQuery {
		return nil, ErrQuery
	}
	codes := make([]models.TroubleCode, len(c.owner.cfg.Codes))
	copy(codes, c.owner.cfg.Codes)
	return codes, nil
}

func (c *conn) Close() error {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.status = obd.StatusNotConnected
	c.owner.closes++
	return nil
}
