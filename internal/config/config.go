package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"tick/tickos/kernel"
)

//go:embed default.yaml
var rawDefault []byte

var ErrInvalid = errors.New("invalid config")

type Config struct {
	HeapWords int    `yaml:"heapWords"`
	TickRate  int    `yaml:"tickRate"`
	Serial    Serial `yaml:"serial"`
	Check     Check  `yaml:"check"`
	Tasks     []Task `yaml:"tasks"`
}

type Serial struct {
	BytesPerTick int `yaml:"bytesPerTick"`
}

type Check struct {
	Enabled     bool   `yaml:"enabled"`
	Priority    int    `yaml:"priority"`
	Period      uint64 `yaml:"period"`
	ErrorPeriod uint64 `yaml:"errorPeriod"`
	StackWords  int    `yaml:"stackWords"`
}

type Task struct {
	Name       string `yaml:"name"`
	Priority   int    `yaml:"priority"`
	Period     uint64 `yaml:"period"`
	Phase      uint64 `yaml:"phase"`
	Writes     int    `yaml:"writes"`
	Message    string `yaml:"message"`
	Delay      uint64 `yaml:"delay"`
	Retry      Retry  `yaml:"retry"`
	Timeout    string `yaml:"timeout"`
	StackWords int    `yaml:"stackWords"`
	TracePin   string `yaml:"tracePin"`
}

type Retry struct {
	Budget  int    `yaml:"budget"`
	Backoff uint64 `yaml:"backoff"`
}

// ParseTimeout reads a mutex wait bound: "forever" (or empty), "nowait"
// or a tick count.
func ParseTimeout(s string) (kernel.Timeout, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "forever":
		return kernel.WaitForever, nil
	case "nowait":
		return kernel.NoWait, nil
	default:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalid, "timeout %q", s)
		}
		return kernel.Timeout(n), nil
	}
}

// WaitTimeout returns the parsed Timeout field.
func (t Task) WaitTimeout() kernel.Timeout {
	d, err := ParseTimeout(t.Timeout)
	if err != nil {
		return kernel.WaitForever
	}
	return d
}

// Default returns the embedded default configuration.
func Default() (Config, error) {
	return Parse(nil)
}

// Parse decodes data on top of the defaults. A task list in data replaces
// the default task list as a whole.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(rawDefault, &c); err != nil {
		return Config{}, errors.Wrap(err, "default config")
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, errors.Wrap(err, "parse config")
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads a configuration file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HeapWords < 0 || c.TickRate < 0 || c.Serial.BytesPerTick < 0 {
		return errors.Wrap(ErrInvalid, "negative heapWords, tickRate or bytesPerTick")
	}
	if len(c.Tasks) == 0 {
		return errors.Wrap(ErrInvalid, "no tasks")
	}
	if c.Check.Enabled && c.Check.Priority < 1 {
		return errors.Wrapf(ErrInvalid, "check: priority %d < 1", c.Check.Priority)
	}

	var names []string
	for i, t := range c.Tasks {
		if t.Name == "" {
			return errors.Wrapf(ErrInvalid, "task %d: empty name", i)
		}
		if slices.Contains(names, t.Name) {
			return errors.Wrapf(ErrInvalid, "task %q: duplicate name", t.Name)
		}
		names = append(names, t.Name)

		switch {
		case t.Priority < 1:
			return errors.Wrapf(ErrInvalid, "task %q: priority %d < 1", t.Name, t.Priority)
		case t.Period == 0:
			return errors.Wrapf(ErrInvalid, "task %q: zero period", t.Name)
		case t.Writes < 1:
			return errors.Wrapf(ErrInvalid, "task %q: writes %d < 1", t.Name, t.Writes)
		case t.Retry.Budget < 0:
			return errors.Wrapf(ErrInvalid, "task %q: negative retry budget", t.Name)
		}
		if _, err := ParseTimeout(t.Timeout); err != nil {
			return errors.Wrapf(err, "task %q", t.Name)
		}
	}
	return nil
}

// FindTask returns the task named name.
func (c Config) FindTask(name string) (Task, bool) {
	i := slices.IndexFunc(c.Tasks, func(t Task) bool { return t.Name == name })
	if i < 0 {
		return Task{}, false
	}
	return c.Tasks[i], true
}
