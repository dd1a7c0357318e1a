package status

import (
	"sort"

	"github.com/samber/lo"
)

// Summary aggregates the board the way the dashboard header shows it.
type Summary struct {
	Devices     int            `json:"devices"`
	ByStatus    map[string]int `json:"by_status"`
	ByCountry   map[string]int `json:"by_country"`
	Runs        int            `json:"runs"`
	Successes   int            `json:"successes"`
	Errors      int            `json:"errors"`
	SuccessRate float64        `json:"success_rate"`
}

// Summarize computes a Summary over devices.
func Summarize(devices []Device) Summary {
	s := Summary{
		Devices: len(devices),
		ByStatus: lo.CountValuesBy(devices, func(d Device) string {
			return lo.Ternary(d.CurrentStatus == "", "unknown", d.CurrentStatus)
		}),
		ByCountry: lo.CountValuesBy(devices, func(d Device) string {
			return lo.Ternary(d.Country == "", "unknown", d.Country)
		}),
		Runs:      lo.SumBy(devices, func(d Device) int { return d.NumberOfRun }),
		Successes: lo.SumBy(devices, func(d Device) int { return d.NumOfSuccess }),
		Errors:    lo.SumBy(devices, func(d Device) int { return d.NumOfError }),
	}
	if s.Runs > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Runs) * 100
	}
	return s
}

// Summary summarizes the board's current contents.
func (b *Board) Summary() Summary {
	return Summarize(b.All())
}

// Statuses returns the distinct status values present, sorted.
func Statuses(devices []Device) []string {
	out := lo.Uniq(lo.Map(devices, func(d Device, _ int) string { return d.CurrentStatus }))
	out = lo.Compact(out)
	sort.Strings(out)
	return out
}
