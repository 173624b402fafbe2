package timereg

import "time"

// Well-known identification types used across providers.
const (
	IdentFullName           = "FullName"
	IdentAtlassianID        = "AtlassianID"
	IdentTimerWorkspace     = "TimerWorkspace"
	IdentInvoiceAccount     = "InvoiceAccount"
	IdentInvoiceAccountText = "InvoiceAccountText"
	IdentIssueKey           = "IssueKey"
	IdentSourceDescription  = "SourceDescription"
)

// Registrant is the person whose time entries are reconciled across backends.
// Built once per run from the logged-in identities of the providers involved
// and never mutated afterwards.
type Registrant struct {
	Name            string
	Identifications map[string]string
}

// Identification returns the identification value for the given type,
// or "" when the registrant has none of that type.
func (r Registrant) Identification(identType string) string {
	return r.Identifications[identType]
}

// Entry is a single time registration. Entries are produced fresh on every
// fetch and never mutated after creation, only grouped and summed.
type Entry struct {
	Registrant *Registrant

	// TimeUsed is the registered time in fractional hours, always >= 0.
	TimeUsed float64

	// DateExecuted is the day the work was performed, normalized to local
	// midnight so day-bucketing by equality is exact.
	DateExecuted time.Time

	// Warning optionally carries a human-readable note about the entry.
	Warning string

	// AccountIdentifications maps account identification types to values,
	// e.g. IdentInvoiceAccount -> "4711" or IdentIssueKey -> "PROJ-12".
	AccountIdentifications map[string]string
}

// NewEntry builds an entry with the executed date normalized to local midnight.
func NewEntry(registrant *Registrant, timeUsed float64, dateExecuted time.Time, accountIdents map[string]string) Entry {
	return Entry{
		Registrant:             registrant,
		TimeUsed:               timeUsed,
		DateExecuted:           Day(dateExecuted),
		AccountIdentifications: accountIdents,
	}
}

// Day normalizes a timestamp to local midnight of its calendar day.
func Day(value time.Time) time.Time {
	local := value.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
}

// AccountIdentification returns the value for the given account identification
// type and whether it was present.
func (e Entry) AccountIdentification(identType string) (string, bool) {
	value, ok := e.AccountIdentifications[identType]
	return value, ok
}
