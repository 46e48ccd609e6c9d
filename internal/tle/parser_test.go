package tle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(issTLE+starlinkTLE), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	iss := entries[0]
	assert.Equal(t, 25544, iss.NORADID)
	assert.Equal(t, "ISS (ZARYA)", iss.Name)
	// Day 100.5 of 2024 (leap year) is April 9 12:00 UTC.
	assert.Equal(t, time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC), iss.Epoch)
	assert.True(t, strings.HasPrefix(iss.Line1, "1 25544U"))
	assert.True(t, strings.HasPrefix(iss.Line2, "2 25544"))
}

func TestParseSkipsMalformed(t *testing.T) {
	input := "GARBAGE HEADER\n" +
		issTLE +
		"BAD ID\n1 ABCDEU 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005\n2 ABCDE  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09\n" +
		"BAD EPOCH\n1 11111U 98067A   24XXX.50000000  .00016717  00000-0  10270-3 0  9005\n2 11111  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09\n" +
		starlinkTLE

	entries, err := Parse(strings.NewReader(input), testLogger)
	require.NoError(t, err)

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.NORADID)
	}
	assert.Equal(t, []int{25544, 44713}, ids)
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"24001.00000000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"99365.50000000", time.Date(1999, 12, 31, 12, 0, 0, 0, time.UTC)},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"56001.25000000", time.Date(2056, 1, 1, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}

	for _, bad := range []string{"24", "2X001.0", "24abc", "24000.5"} {
		_, err := parseEpoch(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewDatasetDropsDuplicates(t *testing.T) {
	entries, err := Parse(strings.NewReader(issTLE+starlinkTLE+strings.Replace(issTLE, "ISS (ZARYA)", "ISS COPY", 1)), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	ds := NewDataset("test", time.Now(), entries, testLogger)
	require.Len(t, ds.Satellites, 2)

	iss, ok := ds.Lookup(25544)
	require.True(t, ok)
	assert.Equal(t, "ISS (ZARYA)", iss.Name)

	_, ok = ds.Lookup(1)
	assert.False(t, ok)

	want := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, ds.EpochRange.Min)
	assert.Equal(t, want, ds.EpochRange.Max)
}
