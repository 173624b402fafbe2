// Package tempo connects the engine to the issue-tracking worklog service.
// Payloads are decoded into typed structs at this boundary; the engine only
// ever sees timereg entries.
package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"timesync/cache"
	"timesync/provider"
	"timesync/timereg"
)

const dayLayout = "2006-01-02"

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// WorklogURL is the base URL of the worklog API.
	WorklogURL string
	// IssueURL is the base URL of the issue-tracking REST API used to
	// resolve invoice accounts for issues.
	IssueURL   string
	APIToken   string
	HTTPClient httpDoer
}

// Provider implements the capability contract for the worklog service.
type Provider struct {
	worklogURL string
	issueURL   string
	apiToken   string
	httpClient httpDoer
	store      *cache.Store
	log        zerolog.Logger

	accounts     map[string]string            // numeric account id -> invoice account key
	issueIdents  map[string]map[string]string // issue key -> account identifications
	identsLoaded bool
}

func New(cfg Config, store *cache.Store, log zerolog.Logger) (*Provider, error) {
	worklogURL, err := normalizeBaseURL(cfg.WorklogURL)
	if err != nil {
		return nil, fmt.Errorf("worklog URL: %w", err)
	}
	issueURL, err := normalizeBaseURL(cfg.IssueURL)
	if err != nil {
		return nil, fmt.Errorf("issue URL: %w", err)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		worklogURL: worklogURL,
		issueURL:   issueURL,
		apiToken:   strings.TrimSpace(cfg.APIToken),
		httpClient: doer,
		store:      store,
		log:        log,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", errors.New("base URL is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", raw)
	}
	return raw, nil
}

func (p *Provider) Name() string { return "tempo" }

func (p *Provider) CanCreate() bool { return true }

type myselfResponse struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	if p.apiToken == "" {
		return false
	}
	var out myselfResponse
	if err := p.getJSON(ctx, p.issueURL+"/rest/api/2/myself", &out); err != nil {
		return false
	}
	return out.AccountID != ""
}

func (p *Provider) LoggedInIdentity(ctx context.Context) (map[string]string, error) {
	var out myselfResponse
	if err := p.getJSON(ctx, p.issueURL+"/rest/api/2/myself", &out); err != nil {
		return nil, err
	}
	return map[string]string{
		timereg.IdentAtlassianID: out.AccountID,
		timereg.IdentFullName:    out.DisplayName,
	}, nil
}

type worklogResult struct {
	TimeSpentSeconds float64 `json:"timeSpentSeconds"`
	StartDate        string  `json:"startDate"`
	Issue            struct {
		Key string `json:"key"`
	} `json:"issue"`
}

type worklogSearchResponse struct {
	Results []worklogResult `json:"results"`
}

func (p *Provider) FetchEntries(ctx context.Context, registrant *timereg.Registrant, from, to time.Time) ([]timereg.Entry, error) {
	accountID := registrant.Identification(timereg.IdentAtlassianID)
	if accountID == "" {
		return nil, &provider.MissingIdentificationError{Key: timereg.IdentAtlassianID}
	}

	endpoint := fmt.Sprintf("%s/core/3/worklogs/user/%s?from=%s&to=%s&limit=1000",
		p.worklogURL, url.PathEscape(accountID), from.Format(dayLayout), to.Format(dayLayout))

	var search worklogSearchResponse
	if err := p.getJSON(ctx, endpoint, &search); err != nil {
		return nil, fmt.Errorf("fetch worklogs: %w", err)
	}

	entries := make([]timereg.Entry, 0, len(search.Results))
	for _, worklog := range search.Results {
		startDate, err := time.ParseInLocation(dayLayout, worklog.StartDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse worklog start date %q: %w", worklog.StartDate, err)
		}

		idents, err := p.accountIdentifications(ctx, worklog.Issue.Key)
		if err != nil {
			return nil, err
		}

		entries = append(entries, timereg.NewEntry(registrant, worklog.TimeSpentSeconds/3600, startDate, idents))
	}

	if err := p.flushAccountCaches(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (p *Provider) CreateEntry(ctx context.Context, entry timereg.Entry) error {
	accountID := entry.Registrant.Identification(timereg.IdentAtlassianID)
	if accountID == "" {
		return &provider.MissingIdentificationError{Key: timereg.IdentAtlassianID}
	}
	issueKey, ok := entry.AccountIdentification(timereg.IdentIssueKey)
	if !ok {
		return &provider.MissingIdentificationError{Key: timereg.IdentIssueKey}
	}

	payload := map[string]any{
		"issueKey":         issueKey,
		"timeSpentSeconds": entry.TimeUsed * 3600,
		"startDate":        entry.DateExecuted.Format(dayLayout),
		"startTime":        "00:00:00",
		"authorAccountId":  accountID,
	}
	if err := p.postJSON(ctx, p.worklogURL+"/core/3/worklogs", payload, nil); err != nil {
		return fmt.Errorf("create worklog for %s: %w", issueKey, err)
	}

	p.log.Debug().Str("issue", issueKey).Float64("hours", entry.TimeUsed).Msg("created worklog")
	return nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Account *struct {
			ID    json.Number `json:"id"`
			Value string      `json:"value"`
		} `json:"account"`
	} `json:"fields"`
}

type accountsResponse struct {
	Results []struct {
		ID     json.Number `json:"id"`
		Key    string      `json:"key"`
		Status string      `json:"status"`
	} `json:"results"`
}

// accountIdentifications resolves an issue key to its invoice account,
// memoized across runs via the metadata cache. Issues without an open account
// yield identifications with no invoice account, which downstream aggregation
// surfaces as unresolved.
func (p *Provider) accountIdentifications(ctx context.Context, issueKey string) (map[string]string, error) {
	if err := p.ensureAccountCaches(ctx); err != nil {
		return nil, err
	}

	if idents, ok := p.issueIdents[issueKey]; ok {
		return idents, nil
	}

	var issue issueResponse
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=account", p.issueURL, url.PathEscape(issueKey))
	if err := p.getJSON(ctx, endpoint, &issue); err != nil {
		return nil, fmt.Errorf("resolve issue %s: %w", issueKey, err)
	}

	idents := map[string]string{
		timereg.IdentIssueKey: issue.Key,
	}

	if field := issue.Fields.Account; field != nil {
		invoiceAccount := p.accounts[field.ID.String()]
		if invoiceAccount == "" && field.Value != "" {
			// Closed accounts are absent from the open-account listing; fall
			// back to the leading token of the display value.
			invoiceAccount = strings.SplitN(field.Value, " ", 2)[0]
		}
		if invoiceAccount != "" {
			idents[timereg.IdentInvoiceAccount] = invoiceAccount
		}
		if field.Value != "" {
			idents[timereg.IdentInvoiceAccountText] = field.Value
		}
	}

	p.issueIdents[issueKey] = idents
	return idents, nil
}

func (p *Provider) ensureAccountCaches(ctx context.Context) error {
	if p.identsLoaded {
		return nil
	}

	p.issueIdents = make(map[string]map[string]string)
	if _, err := p.store.Get(cache.KeyIssueAccountCache, &p.issueIdents); err != nil {
		return err
	}

	p.accounts = make(map[string]string)
	found, err := p.store.Get(cache.KeyAccountNumbers, &p.accounts)
	if err != nil {
		return err
	}
	if !found {
		var accounts accountsResponse
		if err := p.getJSON(ctx, p.worklogURL+"/core/3/accounts", &accounts); err != nil {
			return fmt.Errorf("fetch accounts: %w", err)
		}
		for _, account := range accounts.Results {
			if account.Status == "CLOSED" {
				continue
			}
			p.accounts[account.ID.String()] = account.Key
		}
	}

	p.identsLoaded = true
	return nil
}

func (p *Provider) flushAccountCaches() error {
	if !p.identsLoaded {
		return nil
	}
	if err := p.store.Set(cache.KeyIssueAccountCache, p.issueIdents); err != nil {
		return err
	}
	return p.store.Set(cache.KeyAccountNumbers, p.accounts)
}

// InvalidateAccountCaches drops both the in-memory and durable account
// resolutions so the next fetch resolves against live data.
func (p *Provider) InvalidateAccountCaches() error {
	p.identsLoaded = false
	p.issueIdents = nil
	p.accounts = nil
	if err := p.store.Delete(cache.KeyIssueAccountCache); err != nil {
		return err
	}
	return p.store.Delete(cache.KeyAccountNumbers)
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out any) error {
	return p.doJSON(ctx, http.MethodGet, endpoint, nil, out)
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return p.doJSON(ctx, http.MethodPost, endpoint, body, out)
}

func (p *Provider) doJSON(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}
