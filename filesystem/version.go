package filesystem

import (
	"errors"
	"fmt"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/engine"
)

// ErrEngineUnavailable is returned when no engine of the requested
// generation is registered with the engine package.
var ErrEngineUnavailable = errors.New("littlefs engine not available in this build (rebuild with -tags littlefs)")

// MountVersion mounts dev with the registered engine of generation v.
func MountVersion(v littlefs.Version, dev littlefs.BlockDevice, tuning littlefs.Tuning) (littlefs.Filesystem, error) {
	switch v {
	case littlefs.V1:
		d, ok := engine.V1Driver()
		if !ok {
			return nil, fmt.Errorf("%s: %w", v, ErrEngineUnavailable)
		}
		fs, err := Mount[engine.Config1](V1{Driver: d}, dev, tuning)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case littlefs.V2:
		d, ok := engine.V2Driver()
		if !ok {
			return nil, fmt.Errorf("%s: %w", v, ErrEngineUnavailable)
		}
		fs, err := Mount[engine.Config2](V2{Driver: d}, dev, tuning)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		_, err := littlefs.ParseVersion(uint32(v))
		return nil, err
	}
}

// FormatVersion formats dev with the registered engine of generation v.
func FormatVersion(v littlefs.Version, dev littlefs.BlockDevice, tuning littlefs.Tuning) error {
	switch v {
	case littlefs.V1:
		d, ok := engine.V1Driver()
		if !ok {
			return fmt.Errorf("%s: %w", v, ErrEngineUnavailable)
		}
		return Format[engine.Config1](V1{Driver: d}, dev, tuning)
	case littlefs.V2:
		d, ok := engine.V2Driver()
		if !ok {
			return fmt.Errorf("%s: %w", v, ErrEngineUnavailable)
		}
		return Format[engine.Config2](V2{Driver: d}, dev, tuning)
	default:
		_, err := littlefs.ParseVersion(uint32(v))
		return err
	}
}
