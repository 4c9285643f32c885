package database

import (
	"strings"
	"testing"
)

func TestRecalculateCurrentValuesIsIdempotent(t *testing.T) {
	// Unchanged sums must not rewrite rows: the reconciliation tick runs
	// every 30 minutes and a no-op upstream pass has to leave updated_at
	// untouched.
	if !strings.Contains(recalculateCurrentValuesQuery, "IS DISTINCT FROM s.current_value") {
		t.Errorf("missing the changed-value guard:\n%s", recalculateCurrentValuesQuery)
	}
	if !strings.Contains(recalculateCurrentValuesQuery, "position_status = 'OPEN'") {
		t.Errorf("sums must only cover open positions:\n%s", recalculateCurrentValuesQuery)
	}
}
