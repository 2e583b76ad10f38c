package usagecache

import (
	"testing"

	"github.com/j-veylop/gateway-usage-tui/internal/models"
)

func TestMergeNewest_PrependsOnlyNew(t *testing.T) {
	existing := []models.UsageRequestEntry{row("official", 300, 1), row("official", 200, 1), row("official", 100, 1)}
	fetched := []models.UsageRequestEntry{row("official", 500, 1), row("official", 400, 1), row("official", 300, 1)}

	merged, added := MergeNewest(existing, fetched)
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if len(merged) != 5 || merged[0].UnixMs != 500 || merged[4].UnixMs != 100 {
		t.Errorf("unexpected merge result: %+v", merged)
	}
}

func TestMergeNewest_Idempotent(t *testing.T) {
	existing := []models.UsageRequestEntry{row("official", 200, 1), row("provider-a", 100, 1)}
	fetched := []models.UsageRequestEntry{row("provider-a", 400, 3), row("official", 300, 2), row("official", 200, 1)}

	once, _ := MergeNewest(existing, fetched)
	twice, added := MergeNewest(once, fetched)
	if added != 0 {
		t.Errorf("second merge added %d rows", added)
	}
	if len(once) != len(twice) {
		t.Fatalf("merge twice = %d rows, merge once = %d rows", len(twice), len(once))
	}
	for i := range once {
		if IdentityOf(once[i]) != IdentityOf(twice[i]) {
			t.Errorf("row %d differs after second merge", i)
		}
	}
	sorted, unique := assertNewestFirstUnique(twice)
	if !sorted || !unique {
		t.Error("merged rows not newest-first and unique")
	}
}

func TestMergeNewest_SameTimestampDifferentEvent(t *testing.T) {
	a := row("official", 100, 1)
	b := row("official", 100, 1)
	b.SessionID = "session-0002"

	merged, added := MergeNewest([]models.UsageRequestEntry{a}, []models.UsageRequestEntry{b})
	if added != 1 || len(merged) != 2 {
		t.Errorf("distinct identity at the same time was dropped: added=%d len=%d", added, len(merged))
	}
}

func TestMergeNewest_LateArrival(t *testing.T) {
	existing := []models.UsageRequestEntry{row("official", 300, 1), row("official", 100, 1)}
	fetched := []models.UsageRequestEntry{row("official", 200, 1)}

	merged, _ := MergeNewest(existing, fetched)
	if merged[1].UnixMs != 200 {
		t.Errorf("late row not placed by time: %+v", merged)
	}
}

func TestAppendPage(t *testing.T) {
	first := []models.UsageRequestEntry{row("official", 300, 1), row("official", 200, 1)}
	next := []models.UsageRequestEntry{row("official", 200, 1), row("official", 100, 1)}

	out := appendPage(first, next)
	if len(out) != 3 || out[2].UnixMs != 100 {
		t.Errorf("unexpected appended rows: %+v", out)
	}
}
