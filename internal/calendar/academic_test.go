package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcademicYearEnd(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "january stays in current year",
			now:  time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.July, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "last day of july",
			now:  time.Date(2025, time.July, 31, 23, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.July, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "first day of august rolls over",
			now:  time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.July, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "december rolls over",
			now:  time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.July, 31, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(AcademicYearEnd(tc.now)), "got %s", AcademicYearEnd(tc.now))
		})
	}
}

func TestAcademicYearEndKeepsLocation(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	got := AcademicYearEnd(time.Date(2025, time.March, 3, 8, 0, 0, 0, loc))

	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 23, got.Hour())
}

func TestAcademicYearStart(t *testing.T) {
	assert.Equal(t,
		time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC),
		AcademicYearStart(time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t,
		time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
		AcademicYearStart(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2025, time.February, 17, 14, 30, 5, 99, time.UTC))
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), got)
}
