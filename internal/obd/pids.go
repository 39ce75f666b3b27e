package obd

import "fmt"

type Command struct {
	Mode string
	PID  string
	Desc string
}

var (
	CommandSupportedPIDs = Command{Mode: "01", PID: "00", Desc: "Supported PIDs [01-20]"}
	CommandStoredDTCs    = Command{Mode: "03", Desc: "Stored diagnostic trouble codes"}
)

func (c Command) String() string {
	return fmt.Sprintf("%s%s", c.Mode, c.PID)
}

// ResponseMode returns the mode byte an ECU answers this command with.
func (c Command) ResponseMode() string {
	var m int
	if _, err := fmt.Sscanf(c.Mode, "%x", &m); err != nil {
		return ""
	}
	return fmt.Sprintf("%02X", m+0x40)
}
