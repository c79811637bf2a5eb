package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Source defines one scrape target. Credentials are referenced by
// environment variable name so the YAML file stays secret-free.
type Source struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	LoginURL    string `yaml:"login_url,omitempty"`
	UsernameEnv string `yaml:"username_env,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	Enabled     bool   `yaml:"enabled"`
}

// Username resolves the login username from the environment.
func (s Source) Username() string {
	if s.UsernameEnv == "" {
		return ""
	}
	return os.Getenv(s.UsernameEnv)
}

// Password resolves the login password from the environment.
func (s Source) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.PasswordEnv)
}

// LoadSources reads source definitions from a YAML file. The file has a
// top-level "sources" key.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read sources %s", path)
	}

	var wrapper struct {
		Sources []Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "config: parse sources")
	}

	seen := make(map[string]bool, len(wrapper.Sources))
	for _, s := range wrapper.Sources {
		if s.Name == "" || s.URL == "" {
			return nil, eris.New("config: source requires name and url")
		}
		if seen[s.Name] {
			return nil, eris.Errorf("config: duplicate source %q", s.Name)
		}
		seen[s.Name] = true
	}

	return wrapper.Sources, nil
}

// EnabledSources filters to the sources marked enabled.
func EnabledSources(sources []Source) []Source {
	var out []Source
	for _, s := range sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
