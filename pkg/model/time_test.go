package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartTime(t *testing.T) {
	got := StartTime(1541105830796)
	require.Equal(t, time.Date(2018, 11, 1, 21, 37, 10, 796e6, time.UTC), got)
	require.Equal(t, time.UTC, got.Location())
}

func TestDecomposeTime(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
		want TimeRow
	}{
		{
			name: "thursday evening",
			ts:   1541105830796,
			want: TimeRow{
				StartTime: time.Date(2018, 11, 1, 21, 37, 10, 796e6, time.UTC),
				Hour:      21,
				Day:       1,
				Week:      44,
				Month:     11,
				Year:      2018,
				Weekday:   5,
			},
		},
		{
			name: "sunday maps to weekday 1",
			ts:   time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC).UnixMilli(),
			want: TimeRow{
				StartTime: time.Date(2018, 11, 4, 0, 0, 0, 0, time.UTC),
				Hour:      0,
				Day:       4,
				Week:      44,
				Month:     11,
				Year:      2018,
				Weekday:   1,
			},
		},
		{
			name: "saturday maps to weekday 7",
			ts:   time.Date(2018, 11, 3, 12, 30, 0, 0, time.UTC).UnixMilli(),
			want: TimeRow{
				StartTime: time.Date(2018, 11, 3, 12, 30, 0, 0, time.UTC),
				Hour:      12,
				Day:       3,
				Week:      44,
				Month:     11,
				Year:      2018,
				Weekday:   7,
			},
		},
		{
			name: "iso week straddles new year",
			ts:   time.Date(2019, 1, 1, 6, 0, 0, 0, time.UTC).UnixMilli(),
			want: TimeRow{
				StartTime: time.Date(2019, 1, 1, 6, 0, 0, 0, time.UTC),
				Hour:      6,
				Day:       1,
				Week:      1,
				Month:     1,
				Year:      2019,
				Weekday:   3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TimePartsFromMillis(tt.ts))
		})
	}
}
