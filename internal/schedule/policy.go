package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Policy string

const (
	PolicyStatic  Policy = "static"
	PolicyDynamic Policy = "dynamic"
	PolicyGuided  Policy = "guided"
)

// Policies lists every supported policy in sweep order.
var Policies = []Policy{PolicyStatic, PolicyDynamic, PolicyGuided}

func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case PolicyStatic:
		return PolicyStatic, nil
	case PolicyDynamic:
		return PolicyDynamic, nil
	case PolicyGuided:
		return PolicyGuided, nil
	default:
		return "", fmt.Errorf("unsupported schedule policy: %q", name)
	}
}

func (p Policy) String() string {
	return string(p)
}

// Config is fixed for the lifetime of a run.
type Config struct {
	Workers int    `json:"workers" yaml:"workers"`
	Policy  Policy `json:"policy" yaml:"policy"`
	Chunk   int    `json:"chunk" yaml:"chunk"`
}

func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.Chunk <= 0 {
		return errors.New("chunk size must be > 0")
	}
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%s,%d/%d", c.Policy, c.Chunk, c.Workers)
}

// ParseSchedule accepts the "kind[,chunk]" spelling used by OMP_SCHEDULE.
// A missing chunk defaults to 1.
func ParseSchedule(spec string) (Policy, int, error) {
	kind, chunkText, hasChunk := strings.Cut(strings.TrimSpace(spec), ",")
	policy, err := ParsePolicy(kind)
	if err != nil {
		return "", 0, err
	}
	if !hasChunk {
		return policy, 1, nil
	}
	chunk, err := strconv.Atoi(strings.TrimSpace(chunkText))
	if err != nil {
		return "", 0, fmt.Errorf("parse chunk size %q: %w", chunkText, err)
	}
	if chunk <= 0 {
		return "", 0, fmt.Errorf("chunk size must be > 0, got %d", chunk)
	}
	return policy, chunk, nil
}
