package provenance

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

// groupCounter sums counts per name and remembers first appearance for
// stable ordering of equal totals.
type groupCounter struct {
	order  []string
	totals map[string]int
}

func newGroupCounter() *groupCounter {
	return &groupCounter{totals: make(map[string]int)}
}

func (g *groupCounter) add(name string, n int) {
	if _, ok := g.totals[name]; !ok {
		g.order = append(g.order, name)
	}
	g.totals[name] += n
}

func (g *groupCounter) sorted() []domain.StatGroup {
	out := make([]domain.StatGroup, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, domain.StatGroup{Name: name, TotalObjects: g.totals[name]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalObjects > out[j].TotalObjects
	})
	return out
}

// parseCount reads the leading integer of the backend's string counts, so
// "12.5" and "12 objects" both count 12. Values without one count as zero.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// GroupStats groups backend rows by country, city and institution, summing
// object counts and sorting each group by descending total. Rows without a
// country or city are left out of that grouping but still counted in the
// total and in their institution.
func GroupStats(rows []domain.StatRow) domain.StatsSummary {
	countries := newGroupCounter()
	cities := newGroupCounter()
	institutions := newGroupCounter()
	total := 0

	for _, r := range rows {
		n := parseCount(r.TotalObjects)
		total += n
		if r.Country != nil && *r.Country != "" {
			countries.add(*r.Country, n)
		}
		if r.City != nil && *r.City != "" {
			cities.add(*r.City, n)
		}
		institutions.add(r.InstitutionName, n)
	}

	return domain.StatsSummary{
		TotalCount:   total,
		Countries:    countries.sorted(),
		Cities:       cities.sorted(),
		Institutions: institutions.sorted(),
	}
}
