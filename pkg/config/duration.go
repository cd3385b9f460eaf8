package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML values can be written as
// human-readable strings ("30s", "5m") or numeric seconds.
type Duration struct {
	time.Duration
}

// DurationFrom creates a Duration from a standard time.Duration
func DurationFrom(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

func (d *Duration) UnmarshalYAML(value func(any) error) error {
	var raw any
	if err := value(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		d.Duration = parsed

		return nil
	case int:
		d.Duration = time.Duration(v) * time.Second

		return nil
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))

		return nil
	default:
		return fmt.Errorf("unsupported duration type %T", raw)
	}
}
