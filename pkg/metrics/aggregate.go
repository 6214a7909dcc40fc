// Package metrics computes the per-user order summaries shown on the admin
// metrics page.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/preorder/pkg/models"
)

// Key normalizes a submitter name for grouping.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// WeekLabel formats the ISO week of the timestamp's date as "WW 'YY", where
// YY is the ISO week-numbering year rather than the calendar year:
// 2025-12-29 falls in week 1 of 2026 and reads "01 '26".
// Timestamps whose first 10 characters are not a date get models.Placeholder.
func WeekLabel(timestamp string) string {
	d, err := time.Parse(models.DateLayout, models.Order{Timestamp: timestamp}.Date())
	if err != nil {
		return models.Placeholder
	}
	year, week := d.ISOWeek()
	return fmt.Sprintf("%02d '%02d", week, year%100)
}

type group struct {
	displayName string
	orders      []models.Order
}

// Aggregate groups orders by normalized name and returns one summary per
// group, ordered by total orders descending. Groups with equal totals keep
// the order in which their names first appear in orders.
//
// The display name of a group is the raw spelling of its last record in
// input order, not the chronologically latest one.
func Aggregate(orders []models.Order) []models.UserSummary {
	groups := make(map[string]*group)
	var keys []string

	for _, o := range orders {
		k := Key(o.Name)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.displayName = o.Name
		g.orders = append(g.orders, o)
	}

	summaries := make([]models.UserSummary, 0, len(keys))
	for _, k := range keys {
		summaries = append(summaries, summarize(groups[k]))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalOrders > summaries[j].TotalOrders
	})
	return summaries
}

func summarize(g *group) models.UserSummary {
	mostCommon := mostCommonOrder(g.orders)

	sorted := make([]models.Order, len(g.orders))
	copy(sorted, g.orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	for i := range sorted {
		sorted[i].Week = WeekLabel(sorted[i].Timestamp)
	}

	lastOrdered := models.Placeholder
	if len(sorted) > 0 {
		lastOrdered = sorted[0].Date()
	}

	return models.UserSummary{
		DisplayName: g.displayName,
		TotalOrders: len(sorted),
		Orders:      sorted,
		MostCommon:  mostCommon,
		LastOrdered: lastOrdered,
	}
}

// mostCommonOrder returns the most frequent order text. Ties go to the value
// encountered first.
func mostCommonOrder(orders []models.Order) string {
	if len(orders) == 0 {
		return models.Placeholder
	}

	counts := make(map[string]int)
	var seen []string
	for _, o := range orders {
		if counts[o.Order] == 0 {
			seen = append(seen, o.Order)
		}
		counts[o.Order]++
	}

	best := seen[0]
	for _, v := range seen[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
