package config

import "strings"

// LoadFromEnv reads .env (dev builds), the process environment and, when CONFIG_FILE is set,
// a YAML file whose values sit underneath the environment.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	env := FromEnviron()
	path, _ := env.Lookup("CONFIG_FILE")
	if strings.TrimSpace(path) == "" {
		return Load(env)
	}
	file, err := FromFile(strings.TrimSpace(path))
	if err != nil {
		return Config{}, err
	}
	return Load(Layered{env, file})
}
