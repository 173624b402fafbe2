package config

import (
	"bytes"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	KeyWorklogURL   = "worklog.url"
	KeyIssueURL     = "worklog.issue_url"
	KeyWorklogToken = "worklog.token"
	KeyToolkitURL   = "toolkit.url"
	KeyToolkitToken = "toolkit.token"
	KeyTimerURL     = "timer.url"
	KeyTimerEmail   = "timer.email"
	KeyTimerToken   = "timer.token"
	KeyCachePath    = "cache.path"
)

type Config struct {
	Worklog WorklogConfig `mapstructure:"worklog" validate:"required"`
	Toolkit ToolkitConfig `mapstructure:"toolkit" validate:"required"`
	Timer   TimerConfig   `mapstructure:"timer"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

type WorklogConfig struct {
	// URL is the worklog API base. IssueURL is the issue-tracking REST base
	// used to resolve invoice accounts.
	URL      string `mapstructure:"url" validate:"required,url"`
	IssueURL string `mapstructure:"issue_url" validate:"required,url"`
	Token    string `mapstructure:"token"`
}

type ToolkitConfig struct {
	URL   string `mapstructure:"url" validate:"required,url"`
	Token string `mapstructure:"token"`
}

type TimerConfig struct {
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Email string `mapstructure:"email" validate:"omitempty,email"`
	Token string `mapstructure:"token"`
}

type CacheConfig struct {
	// Path overrides the default cache database location.
	Path string `mapstructure:"path"`
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# timesync configuration
worklog:
  url: "https://api.tempo.io"
  issue_url: "https://yourcompany.atlassian.net"
  token: ""

toolkit:
  url: "https://toolkit.yourcompany.com"
  token: ""

timer:
  url: "https://api.track.toggl.com"
  email: ""
  token: ""

cache:
  path: ""
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyWorklogURL, "https://api.tempo.io")
	v.SetDefault(KeyTimerURL, "https://api.track.toggl.com")
	v.SetDefault(KeyCachePath, "")
}
