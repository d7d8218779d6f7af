package config

import (
	"sort"

	"github.com/spf13/viper"

	"github.com/percona/percona-collection-migrator/errors"
)

// ErrUnknownEnvironment is returned for an environment name absent from the file.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment describes the endpoints and allow-lists of one named environment.
// Credential fields hold secret references, never the secrets themselves.
type Environment struct {
	Name string `mapstructure:"-"`

	SourceHost string `mapstructure:"source-host"`
	// SourceAuthDatabase is the authSource of the source credentials.
	SourceAuthDatabase string `mapstructure:"source-auth-database"`
	SourceUsernameRef  string `mapstructure:"source-username-ref"`
	SourcePasswordRef  string `mapstructure:"source-password-ref"`

	DestinationHost         string `mapstructure:"destination-host"`
	DestinationAuthDatabase string `mapstructure:"destination-auth-database"`
	DestinationUsernameRef  string `mapstructure:"destination-username-ref"`
	DestinationPasswordRef  string `mapstructure:"destination-password-ref"`

	ValidDatabases   []string `mapstructure:"valid-databases"`
	ValidCollections []string `mapstructure:"valid-collections"`
}

// Environments is the decoded environments file.
type Environments struct {
	Environments map[string]*Environment `mapstructure:"environments"`
}

// LoadEnvironments reads the YAML environments file at path.
func LoadEnvironments(path string) (*Environments, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var envs Environments

	err = v.Unmarshal(&envs)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	if len(envs.Environments) == 0 {
		return nil, errors.Errorf("%s: no environments defined", path)
	}

	for name, env := range envs.Environments {
		if env == nil {
			return nil, errors.Errorf("%s: environment %q is empty", path, name)
		}

		env.Name = name

		if env.SourceHost == "" {
			return nil, errors.Errorf("%s: environment %q: source-host is required", path, name)
		}

		if env.DestinationHost == "" {
			return nil, errors.Errorf("%s: environment %q: destination-host is required", path, name)
		}
	}

	return &envs, nil
}

// Get returns the named environment or [ErrUnknownEnvironment].
func (e *Environments) Get(name string) (*Environment, error) {
	env, ok := e.Environments[name]
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrUnknownEnvironment, name)
	}

	return env, nil
}

// Names lists the configured environments in order.
func (e *Environments) Names() []string {
	names := make([]string, 0, len(e.Environments))
	for name := range e.Environments {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
