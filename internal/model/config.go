package model

// Config is the complete conflictmap configuration
type Config struct {
	Data         DataConfig         `yaml:"data" mapstructure:"data"`
	Timeline     TimelineConfig     `yaml:"timeline" mapstructure:"timeline"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Editor       EditorConfig       `yaml:"editor" mapstructure:"editor"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Updater      UpdaterConfig      `yaml:"updater" mapstructure:"updater"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
}

// DataConfig locates the datasets.
// Empty sources fall back to the embedded copies.
type DataConfig struct {
	ConflictsSource   string `yaml:"conflicts_source" mapstructure:"conflicts_source"` // file path or URL
	PresidentsSource  string `yaml:"presidents_source" mapstructure:"presidents_source"`
	BoundariesURL     string `yaml:"boundaries_url" mapstructure:"boundaries_url"`
	BoundaryCodeProp  string `yaml:"boundary_code_property" mapstructure:"boundary_code_property"`
	BoundaryNameProp  string `yaml:"boundary_name_property" mapstructure:"boundary_name_property"`
	BoundariesTTLDays int    `yaml:"boundaries_ttl_days" mapstructure:"boundaries_ttl_days"`
}

// TimelineConfig bounds the year slider
type TimelineConfig struct {
	MinYear int `yaml:"min_year" mapstructure:"min_year"`
	MaxYear int `yaml:"max_year" mapstructure:"max_year"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr"`
	Watch        bool   `yaml:"watch" mapstructure:"watch"`               // reload conflicts when the source file changes
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"` // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// EditorConfig locates the editor's local storage
type EditorConfig struct {
	StoragePath string `yaml:"storage_path" mapstructure:"storage_path"` // SQLite file, "~" expanded
}

// HTTPConfig configures outbound HTTP
type HTTPConfig struct {
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRedirects  int    `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string `yaml:"no_proxy" mapstructure:"no_proxy"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir       string `yaml:"dir" mapstructure:"dir"`
	MemoryTTL int    `yaml:"memory_ttl" mapstructure:"memory_ttl"` // minutes
	DiskTTL   int    `yaml:"disk_ttl" mapstructure:"disk_ttl"`     // hours
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`           // updater discovery workers
	LinkWorkers int `yaml:"link_workers" mapstructure:"link_workers"` // concurrent link checks
}

// RateLimitingConfig throttles calls per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LLMConfig configures the authoring assistant
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, perplexity or empty
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// UpdaterConfig configures the dataset updater
type UpdaterConfig struct {
	Discovery      LLMConfig `yaml:"discovery" mapstructure:"discovery"`
	Verification   LLMConfig `yaml:"verification" mapstructure:"verification"`
	Countries      []string  `yaml:"countries" mapstructure:"countries"`
	StateFile      string    `yaml:"state_file" mapstructure:"state_file"`
	BackupDir      string    `yaml:"backup_dir" mapstructure:"backup_dir"`
	LookbackDays   int       `yaml:"lookback_days" mapstructure:"lookback_days"`
	RateLimitDelay float64   `yaml:"rate_limit_delay" mapstructure:"rate_limit_delay"` // seconds between calls per endpoint
}

// AuthorityConfig controls reference-source classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern maps a URL path regex to a tier name
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// DefaultCountries is the updater's country list
var DefaultCountries = []string{
	"AF", "IQ", "SY", "YE", "SO", "LY", "IR", "PK", "VE", "UA", "IL", "PS", "LB", "SD",
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			BoundariesURL:     "https://raw.githubusercontent.com/datasets/geo-countries/master/data/countries.geojson",
			BoundaryCodeProp:  "ISO3166-1-Alpha-2",
			BoundaryNameProp:  "name",
			BoundariesTTLDays: 30,
		},
		Timeline: TimelineConfig{
			MinYear: 1900,
			MaxYear: 2025,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15,
			WriteTimeout: 30,
		},
		Editor: EditorConfig{
			StoragePath: "~/.conflictmap/editor.db",
		},
		HTTP: HTTPConfig{
			Timeout:       15,
			UserAgent:     "conflictmap/0.1 (+https://github.com/ppiankov/conflictmap)",
			MaxRedirects:  3,
			MaxBodyBytes:  50 * 1024 * 1024,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.conflictmap/cache",
			MemoryTTL: 60,
			DiskTTL:   24 * 30,
		},
		Concurrency: ConcurrencyConfig{
			Workers:     4,
			LinkWorkers: 10,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			Burst:             2,
		},
		LLM: LLMConfig{
			Timeout:   60,
			MaxTokens: 2000,
		},
		Updater: UpdaterConfig{
			Discovery: LLMConfig{
				Provider:  "perplexity",
				Model:     "sonar-pro",
				Timeout:   120,
				MaxTokens: 4000,
			},
			Verification: LLMConfig{
				Provider:  "openai",
				Model:     "gpt-4o",
				Timeout:   60,
				MaxTokens: 1000,
			},
			Countries:      DefaultCountries,
			StateFile:      "~/.conflictmap/updater_state.json",
			BackupDir:      "backups",
			LookbackDays:   90,
			RateLimitDelay: 2.0,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"history.state.gov",
				"archives.gov",
				"defense.gov",
				"history.army.mil",
				"cia.gov",
				"congress.gov",
			},
			SecondaryDomains: []string{
				"wikipedia.org",
				"britannica.com",
				"reuters.com",
				"apnews.com",
				"bbc.co.uk",
				"bbc.com",
				"nytimes.com",
				"washingtonpost.com",
			},
		},
	}
}
