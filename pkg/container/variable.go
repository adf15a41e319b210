package container

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Properties is a thread-safe set of string properties with dotted keys.
// Module conditions and starters read them.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties creates an empty property set
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// Set stores a property
func (p *Properties) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Lookup returns a property and whether it is present
func (p *Properties) Lookup(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Get returns a property, or the empty string
func (p *Properties) Get(name string) string {
	v, _ := p.Lookup(name)
	return v
}

// GetOr returns a property, or fallback when it is absent
func (p *Properties) GetOr(name, fallback string) string {
	if v, ok := p.Lookup(name); ok {
		return v
	}
	return fallback
}

// GetInt returns a property parsed as an int, or fallback when it is absent or malformed
func (p *Properties) GetInt(name string, fallback int) int {
	v, ok := p.Lookup(name)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return i
}

// GetBool returns a property parsed as a bool, or fallback when it is absent or malformed
func (p *Properties) GetBool(name string, fallback bool) bool {
	v, ok := p.Lookup(name)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// Keys returns all property names, sorted
func (p *Properties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithPrefix returns the properties under prefix with the prefix removed.
// WithPrefix("db") maps "db.url" to "url".
func (p *Properties) WithPrefix(prefix string) map[string]string {
	if prefix != "" && !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make(map[string]string)
	for k, v := range p.values {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			result[rest] = v
		}
	}
	return result
}

// PropertyLoader loads properties into the context being built
type PropertyLoader interface {
	Load(builder ContextBuilder) error
}

// YamlLoader reads a YAML file and flattens it into dotted keys:
//
//	server:
//	  port: 8080      -> server.port=8080
//	  hosts: [a, b]   -> server.hosts.0=a, server.hosts.1=b
type YamlLoader struct {
	// ConfigPath specifies where to look for config files
	ConfigPath string
	// Optional list of profile names to load (eg. "dev", "prod"). Each profile
	// reads <name>-<profile>.<ext> next to ConfigPath and overrides the base file.
	Profiles []string
}

// Load loads properties from YAML files
func (l YamlLoader) Load(builder ContextBuilder) error {
	configPath := l.ConfigPath
	if configPath == "" {
		configPath = "application.yml"
	}

	paths := []string{configPath}
	for _, profile := range l.Profiles {
		paths = append(paths, profilePath(configPath, profile))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			slog.Debug("Config file not found, skipping", "path", path)
			continue
		}
		if err != nil {
			return ConfigurationError("reading "+path, err)
		}

		var root map[string]any
		if err := yaml.Unmarshal(data, &root); err != nil {
			return ConfigurationError("parsing "+path, err)
		}
		flat := make(map[string]string)
		flatten("", root, flat)
		for k, v := range flat {
			builder.SetProperty(k, v)
		}
		slog.Debug("Loaded YAML properties", "path", path, "count", len(flat))
	}
	return nil
}

func profilePath(path, profile string) string {
	ext := ""
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		ext = path[i:]
		path = path[:i]
	}
	return path + "-" + profile + ext
}

func flatten(prefix string, value any, out map[string]string) {
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(k), child, out)
		}
	case map[any]any:
		for k, child := range v {
			flatten(join(fmt.Sprint(k)), child, out)
		}
	case []any:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// EnvLoader loads properties from the environment
type EnvLoader struct {
	// Prefix filters environment variables to only those with this prefix
	Prefix string
}

// Load loads properties from the environment. APP_SERVER_PORT with prefix
// APP_ becomes server.port.
func (l EnvLoader) Load(builder ContextBuilder) error {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if l.Prefix != "" && !strings.HasPrefix(key, l.Prefix) {
			continue
		}
		builder.SetProperty(envKey(strings.TrimPrefix(key, l.Prefix)), value)
	}
	return nil
}

// DotenvLoader loads properties from .env files without touching the process
// environment. Keys are normalized the way EnvLoader does it.
type DotenvLoader struct {
	Paths []string
	// Prefix filters keys to only those with this prefix
	Prefix string
}

// Load loads properties from .env files
func (l DotenvLoader) Load(builder ContextBuilder) error {
	paths := l.Paths
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Debug("Env file not found, skipping", "path", path)
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return ConfigurationError("reading "+path, err)
		}
		for key, value := range values {
			if l.Prefix != "" && !strings.HasPrefix(key, l.Prefix) {
				continue
			}
			builder.SetProperty(envKey(strings.TrimPrefix(key, l.Prefix)), value)
		}
	}
	return nil
}

// envKey converts SERVER_PORT to server.port
func envKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", ".")
}

// PropertiesFileLoader loads properties from .properties files
type PropertiesFileLoader struct {
	// Path to the properties file
	Path string
}

// Load loads properties from a .properties file
func (l PropertiesFileLoader) Load(builder ContextBuilder) error {
	data, err := os.ReadFile(l.Path)
	if os.IsNotExist(err) {
		slog.Debug("Properties file not found, skipping", "path", l.Path)
		return nil
	}
	if err != nil {
		return ConfigurationError("reading "+l.Path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			builder.SetProperty(line, "")
			continue
		}
		builder.SetProperty(strings.TrimSpace(line[:sep]), strings.TrimSpace(line[sep+1:]))
	}
	return nil
}
