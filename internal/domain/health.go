package domain

import "fmt"

// HealthState is the tri-state classification of a target.
type HealthState int

const (
	Down HealthState = iota
	Degraded
	Up
)

func (s HealthState) String() string {
	switch s {
	case Up:
		return "up"
	case Degraded:
		return "degraded"
	case Down:
		return "down"
	}
	return fmt.Sprintf("HealthState(%d)", int(s))
}

func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HealthState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "up":
		*s = Up
	case "degraded":
		*s = Degraded
	case "down":
		*s = Down
	default:
		return fmt.Errorf("unknown health state %q", string(b))
	}
	return nil
}
