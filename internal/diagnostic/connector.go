package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"io"

	"vdt/internal/models"
	"vdt/internal/obd"
	"vdt/pkg/log"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected means no diagnostic adapter could be reached.
	ErrNotConnected = errors.New("not connected")
	// ErrQueryFailed means the adapter was reached but the code request failed.
	ErrQueryFailed = errors.New("query failed")
)

const (
	msgNotConnected = "Error: Could not connect to the vehicle."
	msgQueryFailed  = "Error: Could not read DTC codes."
)

var errorColor = color.New(color.FgRed)

// Connector opens diagnostic sessions through a provider.
type Connector struct {
	provider obd.OBDProvider
	console  io.Writer
}

func NewConnector(provider obd.OBDProvider, console io.Writer) *Connector {
	return &Connector{provider: provider, console: console}
}

// Connect makes a single attempt to open a session. On failure it prints an
// error line to the console and returns ErrNotConnected.
func (c *Connector) Connect(ctx context.Context) (obd.Connection, error) {
	conn, err := c.provider.Open(ctx)
	if err == nil && conn != nil && conn.Status() != obd.StatusNotConnected {
		return conn, nil
	}

	if conn != nil {
		_ = conn.Close()
	}
	log.Warn("Could not connect to the vehicle", zap.Error(err))
	errorColor.Fprintln(c.console, msgNotConnected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil, ErrNotConnected
}

// Reader retrieves stored trouble codes over an open session.
type Reader struct {
	console io.Writer
}

func NewReader(console io.Writer) *Reader {
	return &Reader{console: console}
}

// ReadCodes issues exactly one stored-code request. A nil connection yields
// no codes and no request. On failure it prints an error line to the
// console and returns ErrQueryFailed.
func (r *Reader) ReadCodes(ctx context.Context, conn obd.Connection) ([]models.TroubleCode, error) {
	if conn == nil {
		return nil, nil
	}

	codes, err := conn.GetDTCs(ctx)
	if err != nil {
		log.Warn("Could not read DTC codes", zap.Error(err))
		errorColor.Fprintln(r.console, msgQueryFailed)
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return codes, nil
}
