package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// AppConfig is the optional TOML application configuration. It carries
// deployment-specific tuning that does not fit environment variables:
// extra approval templates treated as leave, and the holiday calendar.
type AppConfig struct {
	Forms   []Form  `toml:"form"`
	Holiday Holiday `toml:"holiday"`

	path string
}

// Form declares an additional approval template recognized as a leave
// request, on top of the built-in one.
type Form struct {
	Name string `toml:"name"`
}

// Validate checks if the Form is valid
func (f *Form) Validate() error {
	if f.Name == "" {
		return goerr.Wrap(ErrMissingName, "form name is required")
	}
	return nil
}

// Holiday configures the public holiday-calendar API
type Holiday struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

func (x *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to TOML application configuration (optional)",
			Category:    "Config",
			Sources:     cli.EnvVars("LEAVESYNC_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Configure loads and validates the TOML file when a path is set. Without
// a path the zero-value config applies.
func (x *AppConfig) Configure() error {
	if x.path == "" {
		return nil
	}

	data, err := os.ReadFile(x.path)
	if err != nil {
		if os.IsNotExist(err) {
			return goerr.Wrap(ErrConfigNotFound, "application config does not exist",
				goerr.V(ConfigPathKey, x.path))
		}
		return goerr.Wrap(err, "failed to read application config",
			goerr.V(ConfigPathKey, x.path))
	}

	if err := toml.Unmarshal(data, x); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "failed to parse application config",
			goerr.V(ConfigPathKey, x.path), goerr.V("detail", err.Error()))
	}

	return x.Validate()
}

// Validate checks the loaded configuration
func (x *AppConfig) Validate() error {
	seen := map[string]bool{}
	for i, f := range x.Forms {
		if err := f.Validate(); err != nil {
			return goerr.Wrap(err, "invalid form entry", goerr.V(FormIndexKey, i))
		}
		if seen[f.Name] {
			return goerr.Wrap(ErrInvalidConfig, "duplicate form name",
				goerr.V(FormIndexKey, i), goerr.V("name", f.Name))
		}
		seen[f.Name] = true
	}
	return nil
}

// LeaveForms returns the extra leave template names
func (x *AppConfig) LeaveForms() []string {
	names := make([]string, 0, len(x.Forms))
	for _, f := range x.Forms {
		names = append(names, f.Name)
	}
	return names
}
