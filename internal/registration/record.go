package registration

import (
	"sort"
	"strings"
	"time"
)

// Status of a registration as reviewed through the dashboard.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the three reviewable states.
func ValidStatus(s Status) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Record is a single applicant entry. Records are created outside this
// system; only Status (with ReviewReason and UpdateTime) changes here.
type Record struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	School       string    `json:"school,omitempty"`
	WorkUnit     string    `json:"workUnit,omitempty"`
	Major        string    `json:"major,omitempty"`
	Status       Status    `json:"status"`
	ReviewReason string    `json:"reviewReason,omitempty"`
	CreateTime   time.Time `json:"createTime"`
	UpdateTime   time.Time `json:"updateTime"`
}

// Patch carries the only mutation the API surface allows.
type Patch struct {
	Status       Status    `json:"status"`
	ReviewReason string    `json:"reviewReason,omitempty"`
	UpdateTime   time.Time `json:"updateTime"`
}

// Filters narrows a query. Search matches case-insensitively against
// name, phone, email, school and work unit; Status matches exactly.
type Filters struct {
	Search string
	Status Status
}

// Match reports whether r passes the filters.
func (f Filters) Match(r Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	for _, field := range []string{r.Name, r.Phone, r.Email, r.School, r.WorkUnit} {
		if field != "" && strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Options controls ordering and pagination. Zero values mean page 1,
// page size 10, newest first.
type Options struct {
	Page      int
	PageSize  int
	SortField string
	SortAsc   bool
}

// Normalize fills defaults so providers can index safely.
func (o Options) Normalize() Options {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 10
	}
	if o.SortField == "" {
		o.SortField = "createTime"
	}
	return o
}

// SortRecords orders records per opts; the default is createTime
// descending, matching the dashboard's newest-first listing.
func SortRecords(records []Record, opts Options) {
	opts = opts.Normalize()
	key := func(r Record) time.Time {
		if opts.SortField == "updateTime" {
			return r.UpdateTime
		}
		return r.CreateTime
	}
	sort.SliceStable(records, func(i, j int) bool {
		if opts.SortAsc {
			return key(records[i]).Before(key(records[j]))
		}
		return key(records[i]).After(key(records[j]))
	})
}

// Page slices records for opts using (page-1)*pageSize .. page*pageSize.
func Page(records []Record, opts Options) []Record {
	opts = opts.Normalize()
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(records) {
		return []Record{}
	}
	end := start + opts.PageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}
