package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"vdt/internal/models"
	"vdt/internal/obd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeELM is a scripted ELM327: every command written answers with the
// configured reply followed by the prompt. Unknown commands get "?".
type fakeELM struct {
	mu       sync.Mutex
	replies  map[string]string
	silent   bool
	in       bytes.Buffer
	out      bytes.Buffer
	commands []string
	closed   bool
}

func newFakeELM(overrides map[string]string) *fakeELM {
	replies := map[string]string{
		"ATZ":   "ELM327 v1.5",
		"ATE0":  "ATE0\rOK",
		"ATL0":  "OK",
		"ATH0":  "OK",
		"ATS1":  "OK",
		"ATRV":  "12.6V",
		"ATSP0": "OK",
		"0100":  "SEARCHING...\r41 00 BE 3F A8 13",
		"ATDPN": "A6",
		"03":    "43 02 01 33 C1 00",
	}
	for k, v := range overrides {
		replies[k] = v
	}
	return &fakeELM{replies: replies}
}

func (f *fakeELM) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("port closed")
	}
	for _, b := range p {
		if b != '\r' {
			f.in.WriteByte(b)
			continue
		}
		cmd := f.in.String()
		f.in.Reset()
		f.commands = append(f.commands, cmd)
		if f.silent {
			continue
		}
		reply, ok := f.replies[cmd]
		if !ok {
			reply = "?"
		}
		f.out.WriteString(reply + "\r\r>")
	}
	return len(p), nil
}

func (f *fakeELM) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.out.Len() == 0 {
		return 0, io.EOF
	}
	return f.out.Read(p)
}

func (f *fakeELM) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeELM) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func testConfig() Config {
	return Config{Port: "/dev/fake0", Baud: 38400, ReadTimeout: 100 * time.Millisecond}
}

func openerFor(port io.ReadWriteCloser) Opener {
	return func(name string, baud int) (io.ReadWriteCloser, error) {
		return port, nil
	}
}

func TestOpen_CarConnected(t *testing.T) {
	fake := newFakeELM(nil)
	provider := New(testConfig(), WithOpener(openerFor(fake)))

	conn, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, obd.StatusCarConnected, conn.Status())
	elm := conn.(*ELM327)
	assert.Equal(t, ProtocolISO15765_11, elm.Protocol())
	assert.InDelta(t, 12.6, elm.Voltage(), 0.001)

	codes, err := conn.GetDTCs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TroubleCode{"P0133", "U0100"}, codes)

	assert.Equal(t, []string{"ATZ", "ATE0", "ATL0", "ATH0", "ATS1", "ATRV", "ATSP0", "0100", "ATDPN", "03"}, fake.sent())
}

func TestOpen_LowVoltageStaysELMConnected(t *testing.T) {
	fake := newFakeELM(map[string]string{"ATRV": "0.4V"})
	provider := New(testConfig(), WithOpener(openerFor(fake)))

	conn, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, obd.StatusELMConnected, conn.Status())
	assert.NotContains(t, fake.sent(), "ATSP0")
}

func TestOpen_NoProtocolStaysOBDConnected(t *testing.T) {
	fake := newFakeELM(map[string]string{"0100": "UNABLE TO CONNECT"})
	provider := New(testConfig(), WithOpener(openerFor(fake)))

	conn, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, obd.StatusOBDConnected, conn.Status())
	sent := fake.sent()
	for _, p := range fallbackProtocols {
		assert.Contains(t, sent, CommandTryProtocol+p)
	}
}

func TestOpen_NotAnELM(t *testing.T) {
	fake := newFakeELM(map[string]string{"ATZ": "hello"})
	provider := New(testConfig(), WithOpener(openerFor(fake)))

	conn, err := provider.Open(context.Background())
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.True(t, fake.closed)
}

func TestOpen_TriesBaudRates(t *testing.T) {
	cfg := testConfig()
	cfg.Baud = 0
	cfg.ReadTimeout = 30 * time.Millisecond

	var tried []int
	opener := func(name string, baud int) (io.ReadWriteCloser, error) {
		tried = append(tried, baud)
		if baud == 9600 {
			return newFakeELM(nil), nil
		}
		f := newFakeELM(nil)
		f.silent = true
		return f, nil
	}
	provider := New(cfg, WithOpener(opener))

	conn, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, []int{38400, 9600}, tried)
	assert.Equal(t, obd.StatusCarConnected, conn.Status())
}

func TestOpen_AutoDetectsPort(t *testing.T) {
	cfg := testConfig()
	cfg.Port = ""

	var opened []string
	opener := func(name string, baud int) (io.ReadWriteCloser, error) {
		opened = append(opened, name)
		if name == "/dev/ttyUSB0" {
			return nil, errors.New("permission denied")
		}
		return newFakeELM(nil), nil
	}
	detect := func() []string { return []string{"/dev/ttyUSB0", "/dev/rfcomm0"} }
	provider := New(cfg, WithOpener(opener), WithPortDetector(detect))

	conn, err := provider.Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/rfcomm0"}, opened)
}

func TestOpen_NoDevice(t *testing.T) {
	cfg := testConfig()
	cfg.Port = ""
	provider := New(cfg, WithPortDetector(func() []string { return nil }))

	_, err := provider.Open(context.Background())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestOpen_OpenFails(t *testing.T) {
	opener := func(name string, baud int) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such file or directory")
	}
	provider := New(testConfig(), WithOpener(opener))

	_, err := provider.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := New(testConfig(), WithOpener(openerFor(newFakeELM(nil))))

	_, err := provider.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetDTCs_NoData(t *testing.T) {
	fake := newFakeELM(map[string]string{"03": "NO DATA"})
	conn, err := New(testConfig(), WithOpener(openerFor(fake))).Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.GetDTCs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO DATA")
}

func TestGetDTCs_NoCodes(t *testing.T) {
	fake := newFakeELM(map[string]string{"03": "43 00"})
	conn, err := New(testConfig(), WithOpener(openerFor(fake))).Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	codes, err := conn.GetDTCs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestGetDTCs_AfterClose(t *testing.T) {
	fake := newFakeELM(nil)
	conn, err := New(testConfig(), WithOpener(openerFor(fake))).Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.True(t, fake.closed)
	assert.Equal(t, obd.StatusNotConnected, conn.Status())

	_, err = conn.GetDTCs(context.Background())
	assert.Error(t, err)
	assert.NoError(t, conn.Close())
}

func TestReadResponse_Timeout(t *testing.T) {
	fake := newFakeELM(nil)
	fake.silent = true
	elm := newELM327(fake, "fake", 38400, Config{ReadTimeout: 20 * time.Millisecond})

	_, err := elm.readResponse(20 * time.Millisecond)
	assert.Error(t, err)
}

func TestParseVoltage(t *testing.T) {
	v, err := parseVoltage(" 12.5V ")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, v, 0.001)

	_, err = parseVoltage("?")
	assert.Error(t, err)
}

func TestProtocolName(t *testing.T) {
	assert.Equal(t, "ISO 15765-4 CAN (11 bit ID, 500 kbaud)", ProtocolName("6"))
	assert.Equal(t, "Unknown", ProtocolName("Z"))
}

func TestIsCAN(t *testing.T) {
	assert.True(t, isCAN("6"))
	assert.True(t, isCAN("a"))
	assert.False(t, isCAN("3"))
	assert.False(t, isCAN(""))
}
