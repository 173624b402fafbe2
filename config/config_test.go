package config

import (
	"strings"
	"testing"
)

func TestValidateYAMLContent_AcceptsFullConfig(t *testing.T) {
	t.Parallel()

	content := []byte(`worklog:
  url: "https://api.tempo.io"
  issue_url: "https://yourcompany.atlassian.net"
  token: "abc"
toolkit:
  url: "https://toolkit.yourcompany.com"
  token: "def"
timer:
  url: "https://api.track.toggl.com"
  email: "jane@example.com"
  token: "ghi"
cache:
  path: "/tmp/cache.db"
`)

	cfg, err := ValidateYAMLContent(content)
	if err != nil {
		t.Fatalf("expected config to validate: %v", err)
	}
	if cfg.Worklog.IssueURL != "https://yourcompany.atlassian.net" {
		t.Fatalf("unexpected issue URL: %q", cfg.Worklog.IssueURL)
	}
	if cfg.Cache.Path != "/tmp/cache.db" {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
}

func TestValidateYAMLContent_RejectsMissingToolkitURL(t *testing.T) {
	t.Parallel()

	content := []byte(`worklog:
  url: "https://api.tempo.io"
  issue_url: "https://yourcompany.atlassian.net"
toolkit:
  token: "def"
`)

	_, err := ValidateYAMLContent(content)
	if err == nil {
		t.Fatalf("expected validation error for missing toolkit url")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateYAMLContent_RejectsInvalidTimerEmail(t *testing.T) {
	t.Parallel()

	content := []byte(`worklog:
  url: "https://api.tempo.io"
  issue_url: "https://yourcompany.atlassian.net"
toolkit:
  url: "https://toolkit.yourcompany.com"
timer:
  email: "not-an-email"
`)

	if _, err := ValidateYAMLContent(content); err == nil {
		t.Fatalf("expected validation error for invalid timer email")
	}
}

func TestExampleYAMLValidates(t *testing.T) {
	t.Parallel()

	if _, err := ValidateYAMLContent([]byte(ExampleYAML())); err != nil {
		t.Fatalf("example config must validate: %v", err)
	}
}
