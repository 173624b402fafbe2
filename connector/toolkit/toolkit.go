// Package toolkit connects the engine to the enterprise list-based time
// system. Registrations live in a time-registration list joined against a
// case list whose PO number is the invoice account.
package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
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
	BaseURL    string
	APIToken   string
	HTTPClient httpDoer
}

// Provider implements the capability contract for the list system.
type Provider struct {
	baseURL    string
	apiToken   string
	httpClient httpDoer
	store      *cache.Store
	log        zerolog.Logger
}

func New(cfg Config, store *cache.Store, log zerolog.Logger) (*Provider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	doer := cfg.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		baseURL:    baseURL,
		apiToken:   strings.TrimSpace(cfg.APIToken),
		httpClient: doer,
		store:      store,
		log:        log,
	}, nil
}

func (p *Provider) Name() string { return "toolkit" }

func (p *Provider) CanCreate() bool { return true }

type currentUserResponse struct {
	Title string `json:"title"`
}

func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	if p.apiToken == "" {
		return false
	}
	var user currentUserResponse
	if err := p.getJSON(ctx, p.baseURL+"/api/me", &user); err != nil {
		return false
	}
	return user.Title != ""
}

func (p *Provider) LoggedInIdentity(ctx context.Context) (map[string]string, error) {
	var user currentUserResponse
	if err := p.getJSON(ctx, p.baseURL+"/api/me", &user); err != nil {
		return nil, err
	}
	return map[string]string{timereg.IdentFullName: user.Title}, nil
}

type registrationItem struct {
	Hours        float64 `json:"hours"`
	DoneDate     string  `json:"doneDate"`
	CaseTitle    string  `json:"caseTitle"`
	CasePONumber string  `json:"casePONumber"`
}

type registrationsResponse struct {
	Items []registrationItem `json:"items"`
}

func (p *Provider) FetchEntries(ctx context.Context, registrant *timereg.Registrant, from, to time.Time) ([]timereg.Entry, error) {
	fullName := registrant.Identification(timereg.IdentFullName)
	if fullName == "" {
		return nil, &provider.MissingIdentificationError{Key: timereg.IdentFullName}
	}

	endpoint := fmt.Sprintf("%s/api/lists/timeregistrations?doneBy=%s&from=%s&to=%s",
		p.baseURL, url.QueryEscape(fullName), from.Format(dayLayout), to.Format(dayLayout))

	var response registrationsResponse
	if err := p.getJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetch time registrations: %w", err)
	}

	entries := make([]timereg.Entry, 0, len(response.Items))
	for _, item := range response.Items {
		doneDate, err := time.ParseInLocation(dayLayout, item.DoneDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse done date %q: %w", item.DoneDate, err)
		}

		idents := map[string]string{}
		if item.CasePONumber != "" {
			idents[timereg.IdentInvoiceAccount] = item.CasePONumber
		}
		if item.CaseTitle != "" {
			idents[timereg.IdentInvoiceAccountText] = item.CaseTitle
		}

		entries = append(entries, timereg.NewEntry(registrant, item.Hours, doneDate, idents))
	}

	return entries, nil
}

type caseRecord struct {
	Title          string `json:"title"`
	InvoiceAccount string `json:"invoiceAccount"`
}

type caseListItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	PONumber string `json:"poNumber"`
}

type caseListResponse struct {
	Items []caseListItem `json:"items"`
}

func (p *Provider) CreateEntry(ctx context.Context, entry timereg.Entry) error {
	account, ok := entry.AccountIdentification(timereg.IdentInvoiceAccount)
	if !ok {
		return &provider.MissingIdentificationError{Key: timereg.IdentInvoiceAccount}
	}
	accountText, ok := entry.AccountIdentification(timereg.IdentInvoiceAccountText)
	if !ok {
		return &provider.MissingIdentificationError{Key: timereg.IdentInvoiceAccountText}
	}
	if entry.Registrant == nil || entry.Registrant.Identification(timereg.IdentFullName) == "" {
		return &provider.MissingIdentificationError{Key: timereg.IdentFullName}
	}

	caseID, err := p.caseForAccount(ctx, account, accountText)
	if err != nil {
		return err
	}

	defaults, err := p.Defaults()
	if err != nil {
		return err
	}

	payload := map[string]any{
		"caseId":   caseID,
		"hours":    entry.TimeUsed,
		"total":    entry.TimeUsed,
		"doneDate": entry.DateExecuted.Format(dayLayout),
		"doneBy":   entry.Registrant.Identification(timereg.IdentFullName),
		"fields":   defaults,
	}
	if err := p.postJSON(ctx, p.baseURL+"/api/lists/timeregistrations", payload, nil); err != nil {
		return fmt.Errorf("create time registration: %w", err)
	}

	p.log.Debug().
		Str("account", account).
		Float64("hours", entry.TimeUsed).
		Msg("created time registration")
	return nil
}

// caseForAccount resolves the case backing an invoice account. Lookups go
// through the durable case cache first, then a live list fetch; when no case
// exists at all one is created from the account display text.
func (p *Provider) caseForAccount(ctx context.Context, account, accountText string) (int64, error) {
	cases := make(map[string]caseRecord)
	if _, err := p.store.Get(cache.KeyCaseLookups, &cases); err != nil {
		return 0, err
	}

	if id, ok := findCase(cases, account); ok {
		return id, nil
	}

	cases, err := p.refreshCases(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := findCase(cases, account); ok {
		return id, nil
	}

	title := accountText
	if !strings.HasPrefix(title, account+" ") {
		title = fmt.Sprintf("%s - %s", account, accountText)
	}

	var created caseListItem
	payload := map[string]any{"title": title, "poNumber": account}
	if err := p.postJSON(ctx, p.baseURL+"/api/lists/cases", payload, &created); err != nil {
		return 0, fmt.Errorf("create case for account %s: %w", account, err)
	}

	cases[strconv.FormatInt(created.ID, 10)] = caseRecord{Title: title, InvoiceAccount: account}
	if err := p.store.Set(cache.KeyCaseLookups, cases); err != nil {
		return 0, err
	}

	p.log.Info().Str("account", account).Int64("case", created.ID).Msg("created case")
	return created.ID, nil
}

func (p *Provider) refreshCases(ctx context.Context) (map[string]caseRecord, error) {
	var response caseListResponse
	if err := p.getJSON(ctx, p.baseURL+"/api/lists/cases", &response); err != nil {
		return nil, fmt.Errorf("fetch cases: %w", err)
	}

	cases := make(map[string]caseRecord, len(response.Items))
	for _, item := range response.Items {
		cases[strconv.FormatInt(item.ID, 10)] = caseRecord{
			Title:          item.Title,
			InvoiceAccount: item.PONumber,
		}
	}

	if err := p.store.Set(cache.KeyCaseLookups, cases); err != nil {
		return nil, err
	}
	return cases, nil
}

func findCase(cases map[string]caseRecord, account string) (int64, bool) {
	for id, record := range cases {
		if record.InvoiceAccount != account {
			continue
		}
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return 0, false
}

// Defaults returns the cached default field selections applied to created
// registrations.
func (p *Provider) Defaults() (map[string]string, error) {
	defaults := make(map[string]string)
	if _, err := p.store.Get(cache.KeyDefaultValues, &defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// SetDefault stores one default field selection.
func (p *Provider) SetDefault(field, value string) error {
	defaults, err := p.Defaults()
	if err != nil {
		return err
	}
	defaults[field] = value
	return p.store.Set(cache.KeyDefaultValues, defaults)
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
