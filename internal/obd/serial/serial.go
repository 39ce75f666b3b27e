package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"vdt/internal/obd"
	"vdt/pkg/log"

	"github.com/tarm/serial"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout = 5 * time.Second
	DefaultResetDelay  = 1 * time.Second

	// portReadTimeout bounds a single read on the device so that response
	// deadlines stay responsive.
	portReadTimeout = 100 * time.Millisecond
)

// DefaultBaudRates are tried in order when no baud rate is configured.
var DefaultBaudRates = []int{38400, 9600, 115200, 230400}

// ErrNoDevice is returned when no candidate serial device exists.
var ErrNoDevice = errors.New("no serial device found")

// Config holds the serial provider settings. An empty Port and a zero Baud
// select auto-detection.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	// ResetDelay is how long the adapter gets to reboot after ATZ.
	ResetDelay time.Duration
}

// Opener opens a serial device at the given baud rate.
type Opener func(name string, baud int) (io.ReadWriteCloser, error)

type Option func(*SerialOBD)

// WithOpener replaces the function used to open serial devices.
func WithOpener(o Opener) Option {
	return func(s *SerialOBD) {
		s.opener = o
	}
}

// WithPortDetector replaces the serial device auto-detection.
func WithPortDetector(detect func() []string) Option {
	return func(s *SerialOBD) {
		s.detect = detect
	}
}

// SerialOBD implements obd.OBDProvider backed by an ELM327 serial adapter.
type SerialOBD struct {
	cfg    Config
	opener Opener
	detect func() []string
}

// New creates a SerialOBD.
func New(cfg Config, opts ...Option) *SerialOBD {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	s := &SerialOBD{
		cfg:    cfg,
		opener: openPort,
		detect: detectPlatformSerialDev,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open walks the candidate ports and baud rates and returns the first
// session whose adapter answers the reset command.
func (s *SerialOBD) Open(ctx context.Context) (obd.Connection, error) {
	ports := []string{s.cfg.Port}
	if s.cfg.Port == "" {
		ports = s.detect()
	}
	if len(ports) == 0 {
		return nil, ErrNoDevice
	}

	bauds := DefaultBaudRates
	if s.cfg.Baud > 0 {
		bauds = []int{s.cfg.Baud}
	}

	var lastErr error
	for _, port := range ports {
		for _, baud := range bauds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			log.Info("Attempting to connect", zap.String("port", port), zap.Int("baud", baud))
			rw, err := s.opener(port, baud)
			if err != nil {
				log.Warn("Failed to open port", zap.String("port", port), zap.Error(err))
				lastErr = err
				// the device itself is unusable, other baud rates will fail too
				break
			}

			elm := newELM327(rw, port, baud, s.cfg)
			if err := elm.initialize(ctx); err != nil {
				log.Warn("Initialization failed", zap.String("port", port), zap.Int("baud", baud), zap.Error(err))
				_ = rw.Close()
				lastErr = err
				continue
			}

			log.Info("Connected",
				zap.String("port", port),
				zap.Int("baud", baud),
				zap.String("protocol", ProtocolName(elm.Protocol())),
				zap.Float64("voltage", elm.Voltage()),
				zap.Stringer("status", elm.Status()))
			return elm, nil
		}
	}

	return nil, fmt.Errorf("no ELM327 adapter answered: %w", lastErr)
}

func openPort(name string, baud int) (io.ReadWriteCloser, error) {
	cfg := &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: portReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Flush(); err != nil {
		log.Warn("Failed to flush port", zap.Error(err))
	}
	return p, nil
}
