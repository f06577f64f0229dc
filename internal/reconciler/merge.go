package reconciler

import (
	"sort"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// MergeSlips combines candidate slip contents for one user into a single
// slip: for each pick id, the version with the most recent edit timestamp
// across all inputs wins. Pure function; output is ordered by pick id so
// merging is deterministic and idempotent.
func MergeSlips(slips ...[]models.SlipPick) []models.SlipPick {
	winners := make(map[string]models.SlipPick)

	for _, slip := range slips {
		for _, pick := range slip {
			current, ok := winners[pick.PickID]
			if !ok || pick.UpdatedAt > current.UpdatedAt {
				winners[pick.PickID] = pick
			}
		}
	}

	merged := make([]models.SlipPick, 0, len(winners))
	for _, pick := range winners {
		merged = append(merged, pick)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].PickID < merged[j].PickID })
	return merged
}
