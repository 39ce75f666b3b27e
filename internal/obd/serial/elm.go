package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"vdt/internal/models"
	"vdt/internal/obd"
	"vdt/pkg/log"

	"go.uber.org/zap"
)

const (
	CommandReset           = "ATZ"
	CommandEchoOff         = "ATE0"
	CommandLineFeedsOff    = "ATL0"
	CommandHeadersOff      = "ATH0"
	CommandSpacesOn        = "ATS1"
	CommandSetProtocolAuto = "ATSP0"
	CommandTryProtocol     = "ATTP"
	CommandProtocolNum     = "ATDPN"
	CommandReadVoltage     = "ATRV"

	CR     = "\r"
	Prompt = '>'

	// Supported protocol IDs
	ProtocolAuto          = "0" // Automatic mode
	ProtocolJ1850PWM      = "1" // SAE J1850 PWM
	ProtocolJ1850VPW      = "2" // SAE J1850 VPW
	ProtocolISO9141       = "3" // ISO 9141-2
	ProtocolISO14230_5    = "4" // ISO 14230-4 (KWP 5BAUD)
	ProtocolISO14230      = "5" // ISO 14230-4 (KWP FAST)
	ProtocolISO15765_11   = "6" // ISO 15765-4 (CAN 11/500)
	ProtocolISO15765_29   = "7" // ISO 15765-4 (CAN 29/500)
	ProtocolISO15765_11_2 = "8" // ISO 15765-4 (CAN 11/250)
	ProtocolISO15765_29_2 = "9" // ISO 15765-4 (CAN 29/250)
	ProtocolSAEJ1939      = "A" // SAE J1939 (CAN 29/250)

	// MinVehicleVoltage is the lowest ATRV reading taken as vehicle power.
	MinVehicleVoltage = 6.0
)

// fallbackProtocols are tried when automatic detection fails, most common first.
var fallbackProtocols = []string{
	ProtocolISO15765_11,
	ProtocolISO15765_11_2,
	ProtocolJ1850PWM,
	ProtocolJ1850VPW,
	ProtocolISO9141,
	ProtocolISO14230,
}

// ELM327 is an open session with an ELM327 adapter. It implements
// obd.Connection.
type ELM327 struct {
	mu       sync.Mutex
	port     io.ReadWriteCloser
	reader   *bufio.Reader
	portName string
	baudRate int
	protocol string
	voltage  float64
	status   obd.Status

	readTimeout time.Duration
	resetDelay  time.Duration
}

func newELM327(port io.ReadWriteCloser, name string, baud int, cfg Config) *ELM327 {
	return &ELM327{
		port:        port,
		reader:      bufio.NewReader(port),
		portName:    name,
		baudRate:    baud,
		status:      obd.StatusNotConnected,
		readTimeout: cfg.ReadTimeout,
		resetDelay:  cfg.ResetDelay,
	}
}

// initialize resets the adapter and walks it up the status levels. It only
// fails when the adapter itself does not behave like an ELM327; missing
// vehicle power or protocol leaves a lower status instead.
func (e *ELM327) initialize(ctx context.Context) error {
	if err := e.writeCommand(CommandReset); err != nil {
		return err
	}
	if e.resetDelay > 0 {
		time.Sleep(e.resetDelay)
	}
	resp, err := e.readResponse(e.readTimeout)
	if err != nil {
		return fmt.Errorf("failed to read reset response: %w", err)
	}
	if !strings.Contains(resp, "ELM") {
		return fmt.Errorf("no ELM327 response detected in: %q", resp)
	}
	log.Debug("Adapter reset", zap.String("response", resp))

	for _, cmd := range []string{CommandEchoOff, CommandLineFeedsOff, CommandHeadersOff, CommandSpacesOn} {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := e.query(cmd)
		if err != nil {
			return fmt.Errorf("command %s failed: %w", cmd, err)
		}
		if !strings.Contains(resp, "OK") {
			return fmt.Errorf("command %s got %q", cmd, resp)
		}
	}
	e.status = obd.StatusELMConnected

	resp, err = e.query(CommandReadVoltage)
	if err != nil {
		log.Warn("Failed to read voltage", zap.Error(err))
		return nil
	}
	v, err := parseVoltage(resp)
	if err != nil {
		log.Warn("Unreadable voltage response", zap.String("response", resp), zap.Error(err))
		return nil
	}
	e.voltage = v
	if v < MinVehicleVoltage {
		log.Warn("Voltage too low, vehicle ignition may be off", zap.Float64("voltage", v))
		return nil
	}
	e.status = obd.StatusOBDConnected

	if err := e.autoDetectProtocol(); err != nil {
		log.Warn("Auto protocol detection failed, will try specific protocols", zap.Error(err))
		for _, protocol := range fallbackProtocols {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.tryProtocol(protocol); err == nil {
				log.Info("Successfully connected using protocol", zap.String("protocol", protocol))
				break
			}
		}
	}
	if e.protocol != "" {
		e.status = obd.StatusCarConnected
	}
	return nil
}

// autoDetectProtocol lets the adapter search for a protocol with ATSP0
// and a supported-PIDs probe, then reads back the protocol it settled on.
func (e *ELM327) autoDetectProtocol() error {
	resp, err := e.query(CommandSetProtocolAuto)
	if err != nil {
		return fmt.Errorf("failed to set auto protocol: %w", err)
	}
	if !strings.Contains(resp, "OK") {
		return fmt.Errorf("auto protocol rejected: %q", resp)
	}
	if err := e.probe(); err != nil {
		return err
	}

	resp, err = e.query(CommandProtocolNum)
	if err != nil || resp == "" {
		return fmt.Errorf("no response from protocol query")
	}
	// Response might be prefixed with "A" for auto
	protocol := resp
	if len(protocol) == 2 && protocol[0] == 'A' {
		protocol = protocol[1:]
	}
	e.protocol = protocol
	log.Info("Detected protocol", zap.String("protocol", protocol), zap.String("name", ProtocolName(protocol)))
	return nil
}

// tryProtocol attempts to connect using a specific protocol
func (e *ELM327) tryProtocol(protocol string) error {
	if _, err := e.query(CommandTryProtocol + protocol); err != nil {
		return fmt.Errorf("failed to set protocol %s: %w", protocol, err)
	}
	if err := e.probe(); err != nil {
		return fmt.Errorf("protocol %s: %w", protocol, err)
	}
	e.protocol = protocol
	return nil
}

// probe sends the supported-PIDs request and expects a mode 01 answer.
func (e *ELM327) probe() error {
	cmd := obd.CommandSupportedPIDs
	resp, err := e.query(cmd.String())
	if err != nil {
		return fmt.Errorf("failed to send test command: %w", err)
	}
	compact := strings.ReplaceAll(strings.ToUpper(resp), " ", "")
	if !strings.Contains(compact, cmd.ResponseMode()+cmd.PID) {
		return fmt.Errorf("unable to detect protocol: %q", resp)
	}
	return nil
}

func (e *ELM327) Status() obd.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Protocol returns the protocol number the adapter is using.
func (e *ELM327) Protocol() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protocol
}

// Voltage returns the last ATRV reading.
func (e *ELM327) Voltage() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voltage
}

// GetDTCs sends one mode 03 request and decodes the stored trouble codes.
func (e *ELM327) GetDTCs(ctx context.Context) ([]models.TroubleCode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == obd.StatusNotConnected {
		return nil, errors.New("not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := e.query(obd.CommandStoredDTCs.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query DTCs: %w", err)
	}
	log.Debug("DTC response", zap.String("response", resp))

	codes, err := parseDTCResponse(resp, isCAN(e.protocol))
	if err != nil {
		return nil, err
	}
	log.Info("Read trouble codes", zap.Int("count", len(codes)))
	return codes, nil
}

func (e *ELM327) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = obd.StatusNotConnected
	if e.port == nil {
		return nil
	}
	err := e.port.Close()
	e.port = nil
	return err
}

// query sends a command and reads the response up to the prompt.
func (e *ELM327) query(cmd string) (string, error) {
	if err := e.writeCommand(cmd); err != nil {
		return "", err
	}
	resp, err := e.readResponse(e.readTimeout)
	log.Debug("Command response", zap.String("command", cmd), zap.String("response", resp), zap.Error(err))
	return resp, err
}

func (e *ELM327) writeCommand(cmd string) error {
	if e.port == nil {
		return fmt.Errorf("cannot send command: port is nil")
	}

	// discard whatever a previous response left behind
	if n := e.reader.Buffered(); n > 0 {
		_, _ = e.reader.Discard(n)
	}

	full := cmd + CR
	n, err := e.port.Write([]byte(full))
	if err != nil {
		return fmt.Errorf("error writing command %q: %w", cmd, err)
	}
	if n != len(full) {
		return fmt.Errorf("incomplete write of %q: %d/%d bytes", cmd, n, len(full))
	}
	return nil
}

// readResponse collects bytes until the ELM327 prompt '>' is seen or the
// timeout elapses. The prompt is not part of the result.
func (e *ELM327) readResponse(timeout time.Duration) (string, error) {
	var sb strings.Builder
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		b, err := e.reader.ReadByte()
		if err != nil {
			// the port reports its own read timeout as EOF
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return strings.TrimSpace(sb.String()), err
		}
		if b == Prompt {
			return strings.TrimSpace(sb.String()), nil
		}
		// drop null bytes and other control characters except CR/LF
		if b >= 32 && b <= 126 || b == '\r' || b == '\n' {
			sb.WriteByte(b)
		}
	}

	return strings.TrimSpace(sb.String()), fmt.Errorf("read timeout after %v", timeout)
}

// parseVoltage parses an ELM voltage response like "12.5V".
func parseVoltage(response string) (float64, error) {
	response = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(response)), "V"))
	return strconv.ParseFloat(response, 64)
}

// ProtocolName returns human-readable protocol name
func ProtocolName(protocol string) string {
	protocols := map[string]string{
		"0": "Auto",
		"1": "SAE J1850 PWM (41.6 kbaud)",
		"2": "SAE J1850 VPW (10.4 kbaud)",
		"3": "ISO 9141-2 (5 baud init)",
		"4": "ISO 14230-4 KWP (5 baud init)",
		"5": "ISO 14230-4 KWP (fast init)",
		"6": "ISO 15765-4 CAN (11 bit ID, 500 kbaud)",
		"7": "ISO 15765-4 CAN (29 bit ID, 500 kbaud)",
		"8": "ISO 15765-4 CAN (11 bit ID, 250 kbaud)",
		"9": "ISO 15765-4 CAN (29 bit ID, 250 kbaud)",
		"A": "SAE J1939 CAN (29 bit ID, 250 kbaud)",
		"B": "USER1 CAN (11 bit ID, 125 kbaud)",
		"C": "USER2 CAN (11 bit ID, 50 kbaud)",
	}

	if name, ok := protocols[protocol]; ok {
		return name
	}
	return "Unknown"
}

// isCAN reports whether protocol is one of the ISO 15765 / J1939 CAN
// variants, whose mode 03 replies carry a code count byte.
func isCAN(protocol string) bool {
	switch strings.ToUpper(protocol) {
	case ProtocolISO15765_11, ProtocolISO15765_29, ProtocolISO15765_11_2, ProtocolISO15765_29_2, ProtocolSAEJ1939, "B", "C":
		return true
	}
	return false
}
