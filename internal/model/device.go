package model

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
)

// Device names where inference runs. Only the CPU backend is implemented.
type Device string

const (
	CPU  Device = "cpu"
	Auto Device = "auto"
)

// ResolveDevice maps a configured device name to the backend that will run
// the model. "auto" resolves to CPU. Accelerator names (cuda, cuda:N, mps)
// resolve to CPU when fallback is allowed, reporting fellBack=true, and fail
// with domain.ErrModelLoad otherwise.
func ResolveDevice(name string, fallback bool) (dev Device, fellBack bool, err error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "" || n == string(CPU) || n == string(Auto):
		return CPU, false, nil
	case n == "mps" || n == "cuda" || strings.HasPrefix(n, "cuda:"):
		if !fallback {
			return "", false, fmt.Errorf("%w: device %q is not available, only cpu is supported", domain.ErrModelLoad, name)
		}
		return CPU, true, nil
	default:
		return "", false, fmt.Errorf("%w: unknown device %q", domain.ErrModelLoad, name)
	}
}
