package reconciler_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/reconciler"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/google/go-cmp/cmp"
)

func pick(id string, updatedAt int64, selection string) models.SlipPick {
	return models.SlipPick{PickID: id, Selection: selection, UpdatedAt: updatedAt}
}

func TestMergeSlips_MostRecentEditWinsPerPick(t *testing.T) {
	slipA := []models.SlipPick{
		pick("p1", 100, "home"),
		pick("p2", 300, "away"),
	}
	slipB := []models.SlipPick{
		pick("p1", 200, "away"), // newer than A's p1
		pick("p3", 150, "over"),
	}

	got := reconciler.MergeSlips(slipA, slipB)

	want := []models.SlipPick{
		pick("p1", 200, "away"),
		pick("p2", 300, "away"),
		pick("p3", 150, "over"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeSlips() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSlips_IsIdempotent(t *testing.T) {
	slipA := []models.SlipPick{pick("p1", 100, "home"), pick("p2", 300, "away")}
	slipB := []models.SlipPick{pick("p1", 200, "away")}

	merged := reconciler.MergeSlips(slipA, slipB)
	again := reconciler.MergeSlips(merged)

	if diff := cmp.Diff(merged, again); diff != "" {
		t.Errorf("merge of a merged slip changed it (-first +second):\n%s", diff)
	}
}

func TestMergeSlips_EmptyInputs(t *testing.T) {
	if got := reconciler.MergeSlips(); len(got) != 0 {
		t.Errorf("MergeSlips() with no inputs = %+v, want empty", got)
	}
	if got := reconciler.MergeSlips(nil, nil); len(got) != 0 {
		t.Errorf("MergeSlips(nil, nil) = %+v, want empty", got)
	}
}

func TestMergeSlips_OrderOfInputsDoesNotMatter(t *testing.T) {
	slipA := []models.SlipPick{pick("p1", 100, "home")}
	slipB := []models.SlipPick{pick("p1", 200, "away")}

	ab := reconciler.MergeSlips(slipA, slipB)
	ba := reconciler.MergeSlips(slipB, slipA)

	if diff := cmp.Diff(ab, ba); diff != "" {
		t.Errorf("merge is input-order dependent (-ab +ba):\n%s", diff)
	}
}
