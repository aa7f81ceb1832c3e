package util

import "fmt"

const (
	MinPort = 1
	MaxPort = 65535
)

// ValidatePort checks if port is in valid range (1-65535).
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("port %d out of range (must be %d-%d)", port, MinPort, MaxPort)
	}
	return nil
}

// EffectivePort returns explicit when it is set, otherwise fallback. Zero and
// negative values count as unset.
func EffectivePort(explicit, fallback int) int {
	if explicit > 0 {
		return explicit
	}
	return fallback
}
