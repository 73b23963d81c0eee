package strategy

import (
	"cmp"
	"slices"

	"VolumeSentinel/internal/model"
)

// Rank sorts events in place by the rule's metric, highest first. Ties keep
// code order so repeated runs print identically.
func Rank(events []*model.SpikeEvent, rule model.Rule) {
	slices.SortStableFunc(events, func(a, b *model.SpikeEvent) int {
		if c := cmp.Compare(b.Metric(rule), a.Metric(rule)); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
}

// Hits collects live screening results per rule.
type Hits map[model.Rule][]*model.SpikeEvent

// Add files ev under every rule that fired.
func (h Hits) Add(ev *model.SpikeEvent, ratioHit, zHit bool) {
	for _, r := range FiredRules(ratioHit, zHit) {
		h[r] = append(h[r], ev)
	}
}

// Ranked sorts every rule's list and returns h.
func (h Hits) Ranked() Hits {
	for rule, events := range h {
		Rank(events, rule)
	}
	return h
}
