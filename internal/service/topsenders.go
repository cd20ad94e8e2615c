package service

import (
	"sort"

	"mailsweep/internal/model"
)

// topSenders ranks deleted-message counts per lowercased sender and keeps at
// most n entries. Ties break alphabetically so the ranking is stable.
func topSenders(counts map[string]int, n int) []model.TopSender {
	ranked := make([]model.TopSender, 0, len(counts))
	for email, count := range counts {
		ranked = append(ranked, model.TopSender{Email: email, Count: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Email < ranked[j].Email
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
