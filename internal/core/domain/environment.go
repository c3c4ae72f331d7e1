package domain

import "time"

// Settings tune fetching, caching and linking.
type Settings struct {
	CacheDir         string
	FetchConcurrency int
	IOConcurrency    int
	LinkType         LinkType
	Retries          int
	VerifyInterval   time.Duration
	RepodataTTL      time.Duration
}

// DefaultSettings returns the settings used when envy.yaml leaves them out.
func DefaultSettings() Settings {
	return Settings{
		CacheDir:         DefaultCachePath(),
		FetchConcurrency: 8,
		IOConcurrency:    16,
		LinkType:         LinkHardlink,
		Retries:          3,
		VerifyInterval:   24 * time.Hour,
		RepodataTTL:      time.Hour,
	}
}

// Environment is a parsed envy.yaml.
type Environment struct {
	Name            string
	Root            string
	Channels        []Channel
	ChannelPriority ChannelPriorityMode
	Platform        Platform
	Prefix          string
	Dependencies    []MatchSpec
	Settings        Settings
}
