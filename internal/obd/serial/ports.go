package serial

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
)

// detectPlatformSerialDev lists the serial devices an OBD adapter is likely
// to show up as on this platform.
func detectPlatformSerialDev() []string {
	return candidatePorts(runtime.GOOS, filepath.Glob)
}

func candidatePorts(goos string, glob func(string) ([]string, error)) []string {
	if goos == "windows" {
		ports := make([]string, 0, 16)
		for i := 1; i <= 16; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	}

	var patterns []string
	switch goos {
	case "darwin":
		patterns = []string{
			"/dev/tty.usbserial*",
			"/dev/cu.usbserial*",
			"/dev/tty.wchusbserial*",
			"/dev/tty.SLAB_USBtoUART*",
			"/dev/tty.OBD*",
			"/dev/cu.OBD*",
		}
	default:
		patterns = []string{
			"/dev/rfcomm*",
			"/dev/ttyUSB*",
			"/dev/ttyACM*",
		}
	}

	seen := make(map[string]struct{})
	var ports []string
	for _, pattern := range patterns {
		matches, err := glob(pattern)
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			ports = append(ports, m)
		}
	}
	return ports
}
