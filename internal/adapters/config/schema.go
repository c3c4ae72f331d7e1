package config

// Envyfile represents the structure of the envy.yaml configuration file.
type Envyfile struct {
	Name            string       `yaml:"name"`
	Channels        []string     `yaml:"channels"`
	ChannelPriority string       `yaml:"channel_priority"`
	Platform        string       `yaml:"platform"`
	Prefix          string       `yaml:"prefix"`
	Dependencies    []string     `yaml:"dependencies"`
	Settings        *SettingsDTO `yaml:"settings"`
}

// SettingsDTO represents the settings block. Unset fields keep their defaults.
type SettingsDTO struct {
	CacheDir         string `yaml:"cache_dir"`
	FetchConcurrency *int   `yaml:"fetch_concurrency"`
	IOConcurrency    *int   `yaml:"io_concurrency"`
	LinkType         string `yaml:"link_type"`
	Retries          *int   `yaml:"retries"`
	VerifyInterval   string `yaml:"verify_interval"`
	RepodataTTL      string `yaml:"repodata_ttl"`
}
