// Package toggl connects the engine to the timer service. The service is
// read-only from the engine's point of view; entries flow out of it and into
// the worklog provider.
package toggl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timesync/provider"
	"timesync/timereg"
)

const dayLayout = "2006-01-02"

// issueKeyPattern matches an issue key prefix on a timer description,
// including Danish uppercase letters in the project part.
var issueKeyPattern = regexp.MustCompile(`^[A-ZÆØÅ]+-[0-9]+ `)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	APIURL     string
	Email      string
	APIToken   string
	HTTPClient httpDoer
}

// Provider implements the fetch side of the capability contract for the
// timer service. CanCreate is false; transfers only ever read from here.
type Provider struct {
	apiURL     string
	email      string
	apiToken   string
	httpClient httpDoer
	log        zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) (*Provider, error) {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		return nil, errors.New("API URL is required")
	}
	parsed, err := url.Parse(apiURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", cfg.APIURL)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		apiURL:     apiURL,
		email:      strings.TrimSpace(cfg.Email),
		apiToken:   strings.TrimSpace(cfg.APIToken),
		httpClient: doer,
		log:        log,
	}, nil
}

func (p *Provider) Name() string { return "toggl" }

func (p *Provider) CanCreate() bool { return false }

type workspace struct {
	ID json.Number `json:"id"`
}

func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	if p.apiToken == "" {
		return false
	}
	workspaces, err := p.fetchWorkspaces(ctx)
	return err == nil && len(workspaces) > 0
}

// LoggedInIdentity reports the first workspace the token has access to.
func (p *Provider) LoggedInIdentity(ctx context.Context) (map[string]string, error) {
	workspaces, err := p.fetchWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	if len(workspaces) == 0 {
		return nil, errors.New("no workspaces available for this token")
	}
	return map[string]string{timereg.IdentTimerWorkspace: workspaces[0].ID.String()}, nil
}

func (p *Provider) fetchWorkspaces(ctx context.Context) ([]workspace, error) {
	endpoint := fmt.Sprintf("%s/api/v8/workspaces?user_agent=%s", p.apiURL, url.QueryEscape(p.email))
	var workspaces []workspace
	if err := p.getJSON(ctx, endpoint, &workspaces); err != nil {
		return nil, fmt.Errorf("fetch workspaces: %w", err)
	}
	return workspaces, nil
}

type detailItem struct {
	Description string `json:"description"`
	Start       string `json:"start"`
	Dur         int64  `json:"dur"`
}

type detailsResponse struct {
	TotalCount int          `json:"total_count"`
	Data       []detailItem `json:"data"`
}

func (p *Provider) FetchEntries(ctx context.Context, registrant *timereg.Registrant, from, to time.Time) ([]timereg.Entry, error) {
	workspaceID := registrant.Identification(timereg.IdentTimerWorkspace)
	if workspaceID == "" {
		return nil, &provider.MissingIdentificationError{Key: timereg.IdentTimerWorkspace}
	}

	var entries []timereg.Entry
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/reports/api/v2/details?user_agent=%s&workspace_id=%s&page=%s&since=%s&until=%s",
			p.apiURL,
			url.QueryEscape(p.email),
			url.QueryEscape(workspaceID),
			strconv.Itoa(page),
			from.Format(dayLayout),
			to.Format(dayLayout))

		var details detailsResponse
		if err := p.getJSON(ctx, endpoint, &details); err != nil {
			return nil, fmt.Errorf("fetch timer report page %d: %w", page, err)
		}

		for _, item := range details.Data {
			start, err := time.Parse(time.RFC3339, item.Start)
			if err != nil {
				return nil, fmt.Errorf("parse timer start %q: %w", item.Start, err)
			}

			idents := map[string]string{
				timereg.IdentSourceDescription: item.Description,
			}
			if match := issueKeyPattern.FindString(item.Description); match != "" {
				idents[timereg.IdentIssueKey] = strings.TrimSpace(match)
			}

			hours := float64(item.Dur) / 60000 / 60
			entries = append(entries, timereg.NewEntry(registrant, hours, start, idents))
		}

		if len(details.Data) == 0 || len(entries) >= details.TotalCount {
			break
		}
	}

	p.log.Debug().Int("entries", len(entries)).Msg("fetched timer entries")
	return entries, nil
}

func (p *Provider) CreateEntry(ctx context.Context, entry timereg.Entry) error {
	return provider.ErrCreateNotSupported
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// The timer API uses basic auth with the token as the username.
	req.SetBasicAuth(p.apiToken, "api_token")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return provider.ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request %s failed with status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}
