package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timesync/cache"
	"timesync/timereg"
)

type fakeDoer struct {
	fn func(r *http.Request) (*http.Response, error)
}

func (f fakeDoer) Do(r *http.Request) (*http.Response, error) { return f.fn(r) }

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testStore(t *testing.T) *cache.Store {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestProvider(t *testing.T, doer httpDoer) (*Provider, *cache.Store) {
	t.Helper()

	store := testStore(t)
	p, err := New(Config{
		WorklogURL: "https://worklogs.example.com",
		IssueURL:   "https://issues.example.com",
		APIToken:   "token-1",
		HTTPClient: doer,
	}, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p, store
}

func TestFetchEntriesResolvesInvoiceAccounts(t *testing.T) {
	t.Parallel()

	issueLookups := 0
	doer := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/core/3/worklogs/user/"):
			if got := r.URL.Query().Get("limit"); got != "1000" {
				t.Fatalf("unexpected limit: %q", got)
			}
			return jsonResponse(t, 200, map[string]any{
				"results": []map[string]any{
					{
						"timeSpentSeconds": 5400,
						"startDate":        "2026-03-02",
						"issue":            map[string]any{"key": "PROJ-1"},
					},
				},
			}), nil
		case r.URL.Path == "/core/3/accounts":
			return jsonResponse(t, 200, map[string]any{
				"results": []map[string]any{
					{"id": 10, "key": "ACC-10", "status": "OPEN"},
					{"id": 11, "key": "ACC-11", "status": "CLOSED"},
				},
			}), nil
		case r.URL.Path == "/rest/api/2/issue/PROJ-1":
			issueLookups++
			return jsonResponse(t, 200, map[string]any{
				"key": "PROJ-1",
				"fields": map[string]any{
					"account": map[string]any{"id": 10, "value": "ACC-10 Consulting"},
				},
			}), nil
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
			return nil, nil
		}
	}}

	p, store := newTestProvider(t, doer)
	registrant := &timereg.Registrant{
		Identifications: map[string]string{timereg.IdentAtlassianID: "acc-123"},
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.Local)

	entries, err := p.FetchEntries(context.Background(), registrant, from, to)
	if err != nil {
		t.Fatalf("fetch entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", entries)
	}

	entry := entries[0]
	if entry.TimeUsed != 1.5 {
		t.Fatalf("expected 1.5 hours, got %v", entry.TimeUsed)
	}
	if !entry.DateExecuted.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)) {
		t.Fatalf("unexpected day: %v", entry.DateExecuted)
	}
	if account, _ := entry.AccountIdentification(timereg.IdentInvoiceAccount); account != "ACC-10" {
		t.Fatalf("expected resolved account ACC-10, got %q", account)
	}

	// The resolution is flushed to the durable cache after the fetch.
	var cached map[string]map[string]string
	found, err := store.Get(cache.KeyIssueAccountCache, &cached)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if !found || cached["PROJ-1"][timereg.IdentInvoiceAccount] != "ACC-10" {
		t.Fatalf("expected cached resolution, got %+v (found=%v)", cached, found)
	}

	// A second fetch resolves from memory without another issue lookup.
	if _, err := p.FetchEntries(context.Background(), registrant, from, to); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if issueLookups != 1 {
		t.Fatalf("expected 1 issue lookup, got %d", issueLookups)
	}
}

func TestFetchEntriesLeavesClosedAccountsUnresolved(t *testing.T) {
	t.Parallel()

	doer := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/core/3/worklogs/user/"):
			return jsonResponse(t, 200, map[string]any{
				"results": []map[string]any{
					{
						"timeSpentSeconds": 3600,
						"startDate":        "2026-03-02",
						"issue":            map[string]any{"key": "PROJ-2"},
					},
				},
			}), nil
		case r.URL.Path == "/core/3/accounts":
			return jsonResponse(t, 200, map[string]any{"results": []map[string]any{}}), nil
		case r.URL.Path == "/rest/api/2/issue/PROJ-2":
			return jsonResponse(t, 200, map[string]any{
				"key":    "PROJ-2",
				"fields": map[string]any{"account": nil},
			}), nil
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
			return nil, nil
		}
	}}

	p, _ := newTestProvider(t, doer)
	registrant := &timereg.Registrant{
		Identifications: map[string]string{timereg.IdentAtlassianID: "acc-123"},
	}

	entries, err := p.FetchEntries(context.Background(), registrant,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("fetch entries: %v", err)
	}

	if _, ok := entries[0].AccountIdentification(timereg.IdentInvoiceAccount); ok {
		t.Fatalf("expected unresolved account, got %+v", entries[0].AccountIdentifications)
	}
	if key, _ := entries[0].AccountIdentification(timereg.IdentIssueKey); key != "PROJ-2" {
		t.Fatalf("expected issue key to survive, got %q", key)
	}
}

func TestInvalidateAccountCachesForcesReresolution(t *testing.T) {
	t.Parallel()

	issueLookups := 0
	doer := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/core/3/worklogs/user/"):
			return jsonResponse(t, 200, map[string]any{
				"results": []map[string]any{
					{
						"timeSpentSeconds": 3600,
						"startDate":        "2026-03-02",
						"issue":            map[string]any{"key": "PROJ-9"},
					},
				},
			}), nil
		case r.URL.Path == "/core/3/accounts":
			return jsonResponse(t, 200, map[string]any{"results": []map[string]any{}}), nil
		case r.URL.Path == "/rest/api/2/issue/PROJ-9":
			issueLookups++
			return jsonResponse(t, 200, map[string]any{
				"key":    "PROJ-9",
				"fields": map[string]any{"account": nil},
			}), nil
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
			return nil, nil
		}
	}}

	p, store := newTestProvider(t, doer)
	registrant := &timereg.Registrant{
		Identifications: map[string]string{timereg.IdentAtlassianID: "acc-123"},
	}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.Local)

	if _, err := p.FetchEntries(context.Background(), registrant, from, to); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if issueLookups != 1 {
		t.Fatalf("expected 1 issue lookup after first fetch, got %d", issueLookups)
	}

	if err := p.InvalidateAccountCaches(); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	// Both the durable keys and the in-memory memo are gone, so the next
	// fetch resolves the issue against live data again instead of flushing
	// the stale memo back into the store.
	var cached map[string]map[string]string
	if found, err := store.Get(cache.KeyIssueAccountCache, &cached); err != nil || found {
		t.Fatalf("expected durable cache cleared, found=%v err=%v", found, err)
	}
	if _, err := p.FetchEntries(context.Background(), registrant, from, to); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if issueLookups != 2 {
		t.Fatalf("expected re-resolution after invalidation, got %d issue lookups", issueLookups)
	}
}

func TestCreateEntryPostsWorklog(t *testing.T) {
	t.Parallel()

	var posted map[string]any
	doer := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/core/3/worklogs" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
		}
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Fatalf("decode posted body: %v", err)
		}
		return jsonResponse(t, 200, map[string]any{}), nil
	}}

	p, _ := newTestProvider(t, doer)
	registrant := &timereg.Registrant{
		Identifications: map[string]string{timereg.IdentAtlassianID: "acc-123"},
	}
	entry := timereg.NewEntry(registrant, 1.25,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
		map[string]string{timereg.IdentIssueKey: "PROJ-1"})

	if err := p.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if posted["issueKey"] != "PROJ-1" || posted["startDate"] != "2026-03-02" {
		t.Fatalf("unexpected payload: %+v", posted)
	}
	if posted["timeSpentSeconds"].(float64) != 4500 {
		t.Fatalf("expected 4500 seconds, got %v", posted["timeSpentSeconds"])
	}
}

func TestCreateEntryRequiresIssueKey(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t, fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected, got %s %s", r.Method, r.URL)
		return nil, nil
	}})

	registrant := &timereg.Registrant{
		Identifications: map[string]string{timereg.IdentAtlassianID: "acc-123"},
	}
	entry := timereg.NewEntry(registrant, 1.0, time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local), nil)

	err := p.CreateEntry(context.Background(), entry)
	if err == nil || !strings.Contains(err.Error(), timereg.IdentIssueKey) {
		t.Fatalf("expected missing identification error, got %v", err)
	}
}

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()

	authorized := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		return jsonResponse(t, 200, myselfResponse{AccountID: "acc-123", DisplayName: "Jane Doe"}), nil
	}}
	p, _ := newTestProvider(t, authorized)
	if !p.IsAuthenticated(context.Background()) {
		t.Fatalf("expected authenticated")
	}

	rejected := fakeDoer{fn: func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, 401, map[string]any{}), nil
	}}
	p2, _ := newTestProvider(t, rejected)
	if p2.IsAuthenticated(context.Background()) {
		t.Fatalf("expected unauthenticated on 401")
	}
}
