package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-07")
	require.NoError(t, err)
	assert.Equal(t, 2026, m.Year)
	assert.Equal(t, time.July, m.Month)
	assert.Equal(t, "2026-07", m.String())

	_, err = ParseMonth("2026-13")
	assert.Error(t, err)
	_, err = ParseMonth("July 2026")
	assert.Error(t, err)
}

func TestMonthBounds_TenantTimezone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	m := Month{Year: 2026, Month: time.February}
	start, end := m.Bounds(kolkata)

	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, kolkata), start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, kolkata), end)
	// A local order at 23:59 on the last day belongs to the month; the same
	// instant in UTC is already March.
	assert.True(t, end.After(time.Date(2026, 2, 28, 23, 59, 0, 0, kolkata)))
}

func TestMonthClosedAt(t *testing.T) {
	m := Month{Year: 2026, Month: time.June}
	assert.True(t, m.ClosedAt(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, m.ClosedAt(time.Date(2026, 6, 30, 23, 0, 0, 0, time.UTC), time.UTC))
}

func TestMonthPrev(t *testing.T) {
	m := Month{Year: 2026, Month: time.January}
	assert.Equal(t, "2025-12", m.Prev().String())
}
