//go:build !tinygo && !cgo

package hal

import "github.com/pkg/errors"

func RunWindow(_ Options, _ func(h HAL) func() error) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
