package status

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Sort keys accepted by Query.SortBy.
const (
	SortPadCode   = "pad_code"
	SortStatus    = "current_status"
	SortRuns      = "number_of_run"
	SortSuccess   = "num_of_success"
	SortErrors    = "num_of_error"
	SortRate      = "success_rate"
	SortCountry   = "country"
	SortUpdatedAt = "updated_at"
)

// Query filters, sorts and pages the board.
type Query struct {
	Search   string // case-insensitive substring of pad code, code, proxy or status
	Status   string
	Country  string
	SortBy   string
	Desc     bool
	Page     int // 1-based
	PageSize int
}

// Page is one page of query results.
type Page struct {
	Items      []Device `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// Filter returns the devices matching the query's search and filters, sorted.
func Filter(devices []Device, q Query) []Device {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	matched := lo.Filter(devices, func(d Device, _ int) bool {
		if q.Status != "" && !strings.EqualFold(d.CurrentStatus, q.Status) {
			return false
		}
		if q.Country != "" && !strings.EqualFold(d.Country, q.Country) {
			return false
		}
		return term == "" || d.matches(term)
	})

	less := lessFunc(q.SortBy)
	sort.SliceStable(matched, func(i, j int) bool {
		if q.Desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})
	return matched
}

// Run applies the query to devices and returns the requested page.
func Run(devices []Device, q Query) Page {
	matched := Filter(devices, q)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = lo.Clamp(size, 1, MaxPageSize)

	total := len(matched)
	pages := (total + size - 1) / size
	page := lo.Clamp(q.Page, 1, max(pages, 1))

	items := lo.Subset(matched, (page-1)*size, uint(size))
	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
	}
}

// Query runs q against the board's current contents.
func (b *Board) Query(q Query) Page {
	return Run(b.All(), q)
}

func lessFunc(sortBy string) func(a, b Device) bool {
	switch sortBy {
	case SortStatus:
		return func(a, b Device) bool { return a.CurrentStatus < b.CurrentStatus }
	case SortRuns:
		return func(a, b Device) bool { return a.NumberOfRun < b.NumberOfRun }
	case SortSuccess:
		return func(a, b Device) bool { return a.NumOfSuccess < b.NumOfSuccess }
	case SortErrors:
		return func(a, b Device) bool { return a.NumOfError < b.NumOfError }
	case SortRate:
		return func(a, b Device) bool { return a.SuccessRate() < b.SuccessRate() }
	case SortCountry:
		return func(a, b Device) bool { return a.Country < b.Country }
	case SortUpdatedAt:
		return func(a, b Device) bool { return a.UpdatedAt < b.UpdatedAt }
	default:
		return func(a, b Device) bool { return a.PadCode < b.PadCode }
	}
}
