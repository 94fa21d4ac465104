package timing

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRecorder() (*Recorder, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)}
	return NewRecorder(WithClock(clock.Now)), clock
}

func TestRecorderThreeRuns(t *testing.T) {
	rec, clock := newTestRecorder()

	first := rec.Begin()
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, rec.Complete(first, "0xfeed000000000000000000000000000000000000000000000000000000000001", true))

	second := rec.Begin()
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, rec.Complete(second, "0xfeed000000000000000000000000000000000000000000000000000000000002", true))

	third := rec.Begin()
	clock.Advance(50 * time.Millisecond)
	require.NoError(t, rec.Fail(third, "Failed to authenticate with Privy: Invalid JWT"))

	summary := rec.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Pending)
	assert.InDelta(t, 116.67, float64(summary.Average)/float64(time.Millisecond), 0.01)
	assert.Equal(t, int64(117), Milliseconds(summary.Average))

	samples := rec.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, third, samples[0].ID, "newest sample is first")
	assert.Equal(t, first, samples[2].ID)
	assert.Equal(t, StatusError, samples[0].Status)
	assert.Equal(t, 50*time.Millisecond, samples[0].Duration)
	assert.Equal(t, 200*time.Millisecond, samples[1].Duration)
}

func TestRecorderPendingCountsTowardAverage(t *testing.T) {
	rec, clock := newTestRecorder()

	id := rec.Begin()
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, rec.Complete(id, "0x1", true))
	rec.Begin()

	summary := rec.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 50*time.Millisecond, summary.Average)
}

func TestRecorderUpdatesInPlace(t *testing.T) {
	rec, clock := newTestRecorder()

	older := rec.Begin()
	newer := rec.Begin()
	clock.Advance(10 * time.Millisecond)

	// Finishing the older sample leaves ordering unchanged
	require.NoError(t, rec.Complete(older, "0xaa", false))
	samples := rec.Samples()
	assert.Equal(t, newer, samples[0].ID)
	assert.Equal(t, StatusPending, samples[0].Status)
	assert.Equal(t, StatusSuccess, samples[1].Status)

	assert.Error(t, rec.Complete(older, "0xbb", true), "a finished sample cannot be finished again")
	assert.Error(t, rec.Fail("missing", "boom"))
}

func TestRecorderClear(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.Begin()
	rec.Begin()

	rec.Clear()
	assert.Empty(t, rec.Samples())
	assert.Equal(t, Summary{}, rec.Summary())
}

func TestSamplesReturnsCopy(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.Begin()

	samples := rec.Samples()
	samples[0].Status = StatusSuccess
	assert.Equal(t, StatusPending, rec.Samples()[0].Status)
}

func TestRenderTable(t *testing.T) {
	color.NoColor = true
	rec, clock := newTestRecorder()

	ok := rec.Begin()
	clock.Advance(120 * time.Millisecond)
	require.NoError(t, rec.Complete(ok, "0xfeedfacecafebeef", true))
	bad := rec.Begin()
	clock.Advance(30 * time.Millisecond)
	require.NoError(t, rec.Fail(bad, "User wallet not found"))

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, rec.Samples(), func(hash string) string {
		return "https://sepolia.basescan.org/tx/" + hash
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TX HASH")
	assert.True(t, strings.HasPrefix(lines[1], "2 "))
	assert.Contains(t, lines[1], "error")
	assert.Contains(t, lines[1], "30ms")
	assert.True(t, strings.HasPrefix(lines[2], "1 "))
	assert.Contains(t, lines[2], "0xfeedface...")
	assert.Contains(t, lines[2], "https://sepolia.basescan.org/tx/0xfeedfacecafebeef")
	assert.Contains(t, lines[2], "Yes")
	assert.Contains(t, lines[2], "09:30:00")

	buf.Reset()
	require.NoError(t, RenderSummary(&buf, rec.Summary()))
	assert.Contains(t, buf.String(), "Total Tests: 2")
	assert.Contains(t, buf.String(), "Average Duration: 75ms")
	assert.Contains(t, buf.String(), "Successful: 1")

	buf.Reset()
	require.NoError(t, RenderErrors(&buf, rec.Samples()))
	assert.Equal(t, "#2: User wallet not found\n", buf.String())
}

func TestTruncateHash(t *testing.T) {
	assert.Equal(t, "-", TruncateHash(""))
	assert.Equal(t, "0xfeed", TruncateHash("0xfeed"))
	assert.Equal(t, "0x12345678...", TruncateHash("0x1234567890abcdef"))
}
