package obd

import (
	"context"

	"vdt/internal/models"
)

// Status describes how far a connection got while talking to the vehicle.
type Status int

const (
	// StatusNotConnected means no adapter answered.
	StatusNotConnected Status = iota
	// StatusELMConnected means the adapter answered but the vehicle side is unknown.
	StatusELMConnected
	// StatusOBDConnected means the adapter sees vehicle power but no protocol was found.
	StatusOBDConnected
	// StatusCarConnected means a protocol to the vehicle's ECUs was established.
	StatusCarConnected
)

func (s Status) String() string {
	switch s {
	case StatusELMConnected:
		return "ELM connected"
	case StatusOBDConnected:
		return "OBD connected"
	case StatusCarConnected:
		return "car connected"
	default:
		return "not connected"
	}
}

// OBDProvider abstracts access to an OBD-II adapter.
// It handles finding the device and opening a diagnostic session on it.
type OBDProvider interface {
	Open(ctx context.Context) (Connection, error)
}

// Connection is an open diagnostic session. It is owned by the caller that
// opened it and must be closed by that caller.
type Connection interface {
	Status() Status
	// GetDTCs issues one stored trouble code request (mode 03).
	GetDTCs(ctx context.Context) ([]models.TroubleCode, error)
	Close() error
}
