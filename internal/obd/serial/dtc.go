package serial

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vdt/internal/models"
)

// dtcLetters maps the top two bits of the first DTC byte to the system letter.
var dtcLetters = [4]byte{'P', 'C', 'B', 'U'}

// failureMarkers are adapter replies that mean the request did not reach
// or was not answered by the vehicle.
var failureMarkers = []string{"NO DATA", "UNABLE TO CONNECT", "ERROR", "STOPPED"}

// parseDTCResponse decodes a mode 03 reply. Replies look like
// "43 01 33 00 00 00 00" on legacy protocols, "43 02 01 33 01 34" on CAN
// (count byte first), or multi-frame CAN where continuation lines are
// prefixed with "1:", "2:" and so on. Codes are returned in reply order.
func parseDTCResponse(raw string, can bool) ([]models.TroubleCode, error) {
	lines := responseLines(raw)
	if len(lines) == 0 {
		return nil, errors.New("empty response")
	}

	var messages [][]byte
	// next is the index expected on the following continuation frame, or -1
	// when no multi-frame message is open. Indices run 0-F and wrap to 0.
	next := -1
	// skip is set while the open multi-frame message is not a mode 03 reply
	skip := false
	for _, line := range lines {
		upper := strings.ToUpper(line)
		if line == "?" {
			return nil, errors.New("adapter did not understand the request")
		}
		for _, marker := range failureMarkers {
			if strings.Contains(upper, marker) {
				return nil, fmt.Errorf("adapter replied %q", line)
			}
		}

		tokens := strings.Fields(line)
		idx := tokens[0]
		if strings.HasSuffix(idx, ":") {
			n, err := strconv.ParseUint(strings.TrimSuffix(idx, ":"), 16, 8)
			if err != nil || n > 0x0F {
				return nil, fmt.Errorf("malformed frame index in %q", line)
			}
			data, err := decodeHexTokens(tokens[1:])
			if err != nil {
				return nil, fmt.Errorf("malformed line %q: %w", line, err)
			}

			if next >= 0 && int(n) == next {
				if !skip {
					messages[len(messages)-1] = append(messages[len(messages)-1], data...)
				}
				next = (next + 1) % 16
				continue
			}
			if n != 0 {
				return nil, fmt.Errorf("unexpected frame index %X in %q", n, line)
			}
			skip = len(data) == 0 || data[0] != 0x43
			if !skip {
				messages = append(messages, data)
			}
			next = 1
			continue
		}
		if len(tokens) == 1 && len(idx) == 3 {
			// multi-frame byte count header such as "00A"
			next = -1
			continue
		}

		next = -1
		data, err := decodeHexTokens(tokens)
		if err != nil {
			return nil, fmt.Errorf("malformed line %q: %w", line, err)
		}
		if len(data) == 0 || data[0] != 0x43 {
			continue
		}
		messages = append(messages, data)
	}
	if len(messages) == 0 {
		return nil, errors.New("no mode 03 reply in response")
	}

	var codes []models.TroubleCode
	for _, msg := range messages {
		payload := msg[1:]
		count := -1
		if can {
			if len(payload) == 0 {
				continue
			}
			count = int(payload[0])
			payload = payload[1:]
		}

		n := 0
		for i := 0; i+1 < len(payload); i += 2 {
			if count >= 0 && n >= count {
				break
			}
			a, b := payload[i], payload[i+1]
			// zero pairs pad the frame
			if a == 0 && b == 0 {
				continue
			}
			codes = append(codes, decodeDTC(a, b))
			n++
		}
		if count >= 0 && n < count {
			return nil, fmt.Errorf("reply announces %d codes but carries %d", count, n)
		}
	}
	return codes, nil
}

// decodeDTC converts a two-byte DTC to its SAE J2012 form, e.g. 0x01 0x33 -> P0133.
func decodeDTC(a, b byte) models.TroubleCode {
	letter := dtcLetters[a>>6]
	return models.TroubleCode(fmt.Sprintf("%c%d%X%X%X", letter, (a>>4)&0x03, a&0x0F, b>>4, b&0x0F))
}

// responseLines splits a raw reply into trimmed lines, dropping blank lines
// and adapter progress messages.
func responseLines(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		upper := strings.ToUpper(f)
		if strings.HasPrefix(upper, "SEARCHING") || (strings.HasPrefix(upper, "BUS INIT") && !strings.Contains(upper, "ERROR")) {
			continue
		}
		lines = append(lines, f)
	}
	return lines
}

// decodeHexTokens turns "43 01 33" or "430133" style tokens into bytes.
func decodeHexTokens(tokens []string) ([]byte, error) {
	var out []byte
	for _, tok := range tokens {
		if len(tok)%2 != 0 {
			return nil, fmt.Errorf("odd length hex token %q", tok)
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
