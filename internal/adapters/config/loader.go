// Package config provides the configuration loader for envy.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultChannel is used when envy.yaml lists no channels.
const DefaultChannel = "conda-forge"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load finds envy.yaml in cwd or one of its parents and parses it.
func (l *Loader) Load(cwd string) (*domain.Environment, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(configPath)
}

// LoadFile parses the envy.yaml at configPath.
func (l *Loader) LoadFile(configPath string) (*domain.Environment, error) {
	var envyfile Envyfile
	if err := readAndUnmarshalYAML(configPath, &envyfile); err != nil {
		return nil, err
	}

	root := filepath.Dir(configPath)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	env := &domain.Environment{
		Name:   envyfile.Name,
		Root:   root,
		Prefix: resolvePath(root, envyfile.Prefix),
	}
	if env.Name == "" {
		env.Name = filepath.Base(root)
	}
	if env.Prefix == "" {
		env.Prefix = domain.DefaultPrefixPath(root)
	}

	mode, ok := domain.ParseChannelPriorityMode(envyfile.ChannelPriority)
	if !ok {
		return nil, invalidValue(configPath, "channel_priority", envyfile.ChannelPriority)
	}
	env.ChannelPriority = mode

	env.Platform = domain.CurrentPlatform()
	if envyfile.Platform != "" {
		platform, err := domain.ParsePlatform(envyfile.Platform)
		if err != nil {
			return nil, zerr.With(parseErr(err), "path", configPath)
		}
		env.Platform = platform
	}

	env.Channels = l.resolveChannels(root, envyfile.Channels)

	for _, text := range envyfile.Dependencies {
		spec, err := domain.ParseMatchSpec(text)
		if err != nil {
			err = zerr.With(parseErr(err), "dependency", text)
			return nil, zerr.With(err, "path", configPath)
		}
		env.Dependencies = append(env.Dependencies, spec)
	}

	settings, err := resolveSettings(configPath, envyfile.Settings)
	if err != nil {
		return nil, err
	}
	env.Settings = settings

	return env, nil
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		configPath := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "no configuration in any parent"), "cwd", cwd)
}

// resolveChannels turns channel entries into channels ordered by priority.
// Duplicates keep their first position.
func (l *Loader) resolveChannels(root string, entries []string) []domain.Channel {
	if len(entries) == 0 {
		entries = []string{DefaultChannel}
	}
	seen := make(map[string]bool, len(entries))
	channels := make([]domain.Channel, 0, len(entries))
	for _, entry := range entries {
		ch := domain.NewChannel(expandHome(entry), len(channels), root)
		if seen[ch.URL] {
			l.Logger.Warn(fmt.Sprintf("channel %q is listed more than once in %s", entry, domain.ConfigFileName))
			continue
		}
		seen[ch.URL] = true
		channels = append(channels, ch)
	}
	return channels
}

func resolveSettings(configPath string, dto *SettingsDTO) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if dto == nil {
		return settings, nil
	}

	// ENVY_CACHE_DIR wins over the file.
	if dto.CacheDir != "" && os.Getenv(domain.CacheDirEnv) == "" {
		settings.CacheDir = resolvePath(filepath.Dir(configPath), dto.CacheDir)
	}

	for _, field := range []struct {
		name  string
		value *int
		dst   *int
		min   int
	}{
		{"fetch_concurrency", dto.FetchConcurrency, &settings.FetchConcurrency, 1},
		{"io_concurrency", dto.IOConcurrency, &settings.IOConcurrency, 1},
		{"retries", dto.Retries, &settings.Retries, 0},
	} {
		if field.value == nil {
			continue
		}
		if *field.value < field.min {
			return settings, invalidValue(configPath, field.name, *field.value)
		}
		*field.dst = *field.value
	}

	if dto.LinkType != "" {
		linkType, ok := domain.ParseLinkType(dto.LinkType)
		if !ok {
			return settings, invalidValue(configPath, "link_type", dto.LinkType)
		}
		settings.LinkType = linkType
	}

	for _, field := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"verify_interval", dto.VerifyInterval, &settings.VerifyInterval},
		{"repodata_ttl", dto.RepodataTTL, &settings.RepodataTTL},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil || d < 0 {
			return settings, invalidValue(configPath, field.name, field.value)
		}
		*field.dst = d
	}

	return settings, nil
}

// resolvePath expands ~ and makes p absolute relative to base.
func resolvePath(base, p string) string {
	if p == "" {
		return ""
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
// Unknown keys are rejected.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.With(domain.WithCause(domain.ErrConfigReadFailed, err), "path", configPath)
	}

	dec := yaml.NewDecoder(bytes.NewReader(configFile))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return zerr.With(parseErr(err), "path", configPath)
	}

	return nil
}

func parseErr(err error) error {
	return domain.WithCause(domain.ErrConfigParseFailed, err)
}

func invalidValue(configPath, field string, value any) error {
	err := zerr.Wrap(domain.ErrConfigParseFailed, "invalid value")
	err = zerr.With(err, "field", field)
	err = zerr.With(err, "value", fmt.Sprint(value))
	return zerr.With(err, "path", configPath)
}
