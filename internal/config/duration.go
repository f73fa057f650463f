package config

import (
	"errors"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDuration is returned when a config duration is neither a
// Go duration string nor an integer nanosecond count.
var ErrInvalidDuration = errors.New("invalid duration value")

// Duration is a wrapper around time.Duration that accepts "5m"-style
// strings in YAML.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	return ErrInvalidDuration
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
