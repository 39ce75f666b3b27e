package serial

import (
	"fmt"
	"strings"
	"testing"

	"vdt/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDTCResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		can  bool
		want []models.TroubleCode
	}{
		{
			name: "legacy single ECU with padding",
			raw:  "43 01 33 00 00 00 00",
			want: []models.TroubleCode{"P0133"},
		},
		{
			name: "legacy two ECUs",
			raw:  "43 01 33 00 00 00 00\r43 02 02 41 23 00 00",
			want: []models.TroubleCode{"P0133", "P0202", "C0123"},
		},
		{
			name: "CAN single frame",
			raw:  "43 02 01 33 C1 00",
			can:  true,
			want: []models.TroubleCode{"P0133", "U0100"},
		},
		{
			name: "CAN no codes",
			raw:  "43 00",
			can:  true,
			want: nil,
		},
		{
			name: "CAN multi frame",
			raw:  "00A\r0: 43 04 01 33 01 34\r1: 01 35 01 36 00 00 00",
			can:  true,
			want: []models.TroubleCode{"P0133", "P0134", "P0135", "P0136"},
		},
		{
			name: "duplicates are kept",
			raw:  "43 01 33 01 33 00 00",
			want: []models.TroubleCode{"P0133", "P0133"},
		},
		{
			name: "body code",
			raw:  "43 93 42 00 00 00 00",
			want: []models.TroubleCode{"B1342"},
		},
		{
			name: "searching prefix",
			raw:  "SEARCHING...\r43 00 01 00 00 00 00",
			want: []models.TroubleCode{"P0001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDTCResponse(tt.raw, tt.can)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// canMultiFrame lays out a mode 03 CAN reply the way the adapter prints it:
// a byte count line, then 6 bytes in frame 0 and 7 in every following frame,
// with frame indices wrapping from F back to 0.
func canMultiFrame(codes int) (string, []models.TroubleCode) {
	data := []byte{0x43, byte(codes)}
	want := make([]models.TroubleCode, 0, codes)
	for i := 0; i < codes; i++ {
		a, b := byte(0x01), byte(i+1)
		data = append(data, a, b)
		want = append(want, decodeDTC(a, b))
	}

	lines := []string{fmt.Sprintf("%03X", len(data))}
	for frame, off := 0, 0; off < len(data); frame++ {
		size := 7
		if frame == 0 {
			size = 6
		}
		chunk := make([]byte, size)
		copy(chunk, data[off:])
		off += size
		lines = append(lines, fmt.Sprintf("%X: % X", frame%16, chunk))
	}
	return strings.Join(lines, "\r"), want
}

func TestParseDTCResponse_FrameIndexWraps(t *testing.T) {
	raw, want := canMultiFrame(60)
	require.Len(t, responseLines(raw), 19)
	require.Contains(t, raw, "\rF: ")
	require.Contains(t, raw, "\r1: ")

	got, err := parseDTCResponse(raw, true)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseDTCResponse_TruncatedReply(t *testing.T) {
	raw, _ := canMultiFrame(60)
	lines := strings.Split(raw, "\r")

	// the last frame never arrived
	_, err := parseDTCResponse(strings.Join(lines[:len(lines)-1], "\r"), true)
	assert.Error(t, err)

	// a frame went missing in the middle
	gap := append(append([]string{}, lines[:5]...), lines[6:]...)
	_, err = parseDTCResponse(strings.Join(gap, "\r"), true)
	assert.Error(t, err)
}

func TestParseDTCResponse_SkipsOtherMultiFrameReplies(t *testing.T) {
	raw := "00A\r0: 41 00 BE 3F A8 13\r1: 00 00 00 00 00 00 00\r43 01 01 33"
	got, err := parseDTCResponse(raw, true)
	require.NoError(t, err)
	assert.Equal(t, []models.TroubleCode{"P0133"}, got)
}

func TestParseDTCResponse_CompactTokens(t *testing.T) {
	got, err := parseDTCResponse("43013381340000", false)
	require.NoError(t, err)
	assert.Equal(t, []models.TroubleCode{"P0133", "B0134"}, got)
}

func TestParseDTCResponse_Failures(t *testing.T) {
	for _, raw := range []string{
		"",
		"\r\r",
		"NO DATA",
		"?",
		"UNABLE TO CONNECT",
		"CAN ERROR",
		"BUS INIT: ...ERROR",
		"STOPPED",
		"41 00 BE 3F A8 13",
		"43 0G 33",
		"430133813400000",
		"1: 01 35",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseDTCResponse(raw, true)
			assert.Error(t, err)
		})
	}
}

func TestDecodeDTC(t *testing.T) {
	assert.Equal(t, models.TroubleCode("P0001"), decodeDTC(0x00, 0x01))
	assert.Equal(t, models.TroubleCode("P3FFF"), decodeDTC(0x3F, 0xFF))
	assert.Equal(t, models.TroubleCode("C1A00"), decodeDTC(0x5A, 0x00))
	assert.Equal(t, models.TroubleCode("B1600"), decodeDTC(0x96, 0x00))
	assert.Equal(t, models.TroubleCode("U0155"), decodeDTC(0xC1, 0x55))
}
