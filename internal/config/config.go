// Package config turns the free-form strategy options supplied by the host
// into a validated Config, and parses explicit ring descriptions.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// OptionReplicationFactor is the only recognized strategy option.
	OptionReplicationFactor = "replication_factor"

	FormatCSV   = "csv"
	FormatProto = "proto"
)

// ErrConfig is returned for missing or invalid configuration.
var ErrConfig = errors.New("configuration error")

// Options are the raw strategy options, as given by the host.
type Options map[string]string

// Config holds the validated strategy configuration.
type Config struct {
	Keyspace          string `validate:"required,excludesall=/\\"`
	ReplicationFactor int    `validate:"min=1"`
	// Dir is the directory holding the persisted cache.
	Dir string `validate:"required"`
	// Format selects the persisted cache encoding.
	Format string `validate:"oneof=csv proto"`
}

// RecognizedOptions returns the option names ParseOptions accepts.
func RecognizedOptions() []string {
	return []string{OptionReplicationFactor}
}

// ParseOptions validates the options of a keyspace and returns its Config.
// Dir defaults to the working directory and Format to CSV.
func ParseOptions(keyspace string, opts Options) (Config, error) {
	var unknown []string
	for k := range opts {
		if k != OptionReplicationFactor {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, fmt.Errorf("%w: unrecognized strategy options %v", ErrConfig, unknown)
	}

	rf, err := ParseReplicationFactor(opts[OptionReplicationFactor])
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Keyspace:          keyspace,
		ReplicationFactor: rf,
		Dir:               ".",
		Format:            FormatCSV,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseReplicationFactor parses a required, positive replication factor.
func ParseReplicationFactor(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: strategy requires a %s option", ErrConfig, OptionReplicationFactor)
	}
	rf, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfig, OptionReplicationFactor, s)
	}
	if rf < 1 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", ErrConfig, OptionReplicationFactor, rf)
	}
	return rf, nil
}

// Validate checks the struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		msgs := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Field(), e.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(msgs, ", "))
	}
	return nil
}
