package findings

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

func batch(prefix string, n int) []Finding {
	out := make([]Finding, n)
	for i := range out {
		out[i] = FromTemplate(analysis.KindTheftDetection, "bag", Template{Category: "Concealment", Severity: SeverityHigh})
		out[i].ID = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

func TestLog_NewestFirstAndCap(t *testing.T) {
	l := NewLog(4)
	l.Add(batch("a", 3))
	l.Add(batch("b", 2))

	list := l.List()
	require.Len(t, list, 4)
	assert.Equal(t, []string{"b-0", "b-1", "a-0", "a-1"}, []string{list[0].ID, list[1].ID, list[2].ID, list[3].ID})
	assert.Equal(t, 1, l.Evicted())

	l.Add(nil)
	assert.Equal(t, 4, l.Len())
}

func TestLog_Actions(t *testing.T) {
	l := NewLog(0)
	l.Add(batch("x", 3))
	assert.Equal(t, 3, l.ActiveCount())

	f, err := l.Resolve("x-0")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, f.Status)

	f, err = l.Dispatch("x-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, f.Status)
	assert.True(t, f.Active())

	_, err = l.MarkFalseAlarm("x-2")
	require.NoError(t, err)
	assert.Equal(t, 1, l.ActiveCount())

	require.NoError(t, l.Dismiss("x-1"))
	assert.Equal(t, 2, l.Len())
	assert.ErrorIs(t, l.Dismiss("x-1"), ErrNotFound)

	_, err = l.Resolve("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLog_ReportIDs(t *testing.T) {
	l := NewLog(3)
	first := Stamp(batch("", 2), time.Now(), "report-1", func() string { return "a" })
	second := Stamp(batch("", 2), time.Now(), "report-2", func() string { return "b" })
	l.Add(first)
	assert.Equal(t, map[string]struct{}{"report-1": {}}, l.ReportIDs())

	l.Add(second)
	assert.Equal(t, map[string]struct{}{"report-1": {}, "report-2": {}}, l.ReportIDs())

	l.Add(batch("c", 3))
	_, ok := l.ReportIDs()["report-1"]
	assert.False(t, ok, "evicted findings release their report")
}

func TestLog_ListIsACopy(t *testing.T) {
	l := NewLog(2)
	l.Add(batch("c", 1))
	list := l.List()
	list[0].Status = StatusResolved
	assert.Equal(t, StatusOpen, l.List()[0].Status)
}

func TestStamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	out := Stamp(batch("", 2), now, "report-1", func() string { n++; return fmt.Sprintf("id-%d", n) })

	require.Len(t, out, 2)
	assert.Equal(t, "id-1", out[0].ID)
	assert.Equal(t, "id-2", out[1].ID)
	assert.Equal(t, now, out[1].Timestamp)
	assert.Equal(t, "report-1", out[0].ReportID)
	assert.Equal(t, SourceHeuristic, out[0].Source)
}
