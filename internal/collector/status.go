package collector

import "strings"

// Status is the charging state reported by a battery's status attribute.
type Status int

const (
	Unknown Status = iota
	Discharging
	Charging
)

func (s Status) String() string {
	switch s {
	case Discharging:
		return "Discharging"
	case Charging:
		return "Charging"
	default:
		return "Unknown"
	}
}

// ParseStatus maps the text of a power_supply status attribute to a Status.
// Only the exact strings "Discharging" and "Charging" are recognised; "Full",
// "Not charging" and anything else map to Unknown.
func ParseStatus(text string) Status {
	switch strings.TrimSpace(text) {
	case "Discharging":
		return Discharging
	case "Charging":
		return Charging
	default:
		return Unknown
	}
}
