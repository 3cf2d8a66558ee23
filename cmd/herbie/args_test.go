package main

import (
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseFxx(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0", []int{0}},
		{"0,3,6", []int{0, 3, 6}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-12:6", []int{0, 6, 12}},
		{"6, 0-2, 1", []int{6, 0, 1, 2}},
	}
	for _, c := range cases {
		got, err := parseFxx(c.in)
		require.NoError(t, err, c.in)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("parseFxx(%q) 不符合预期 (-want +got):\n%s", c.in, diff)
		}
	}

	for _, bad := range []string{"", "x", "3-1", "-1", "0-6:0"} {
		if _, err := parseFxx(bad); err == nil {
			t.Fatalf("parseFxx(%q) 期望错误", bad)
		}
	}
}

func TestParseArgs_Download(t *testing.T) {
	ca, err := parseArgs("download", []string{
		"--model", "gfs",
		"--date", "2022-01-01 06:00,2022-01-01 12:00",
		"--fxx", "0-2",
		"--priority", "aws, google",
		"--overwrite=false",
		"--search", ":TMP:",
	}, io.Discard)
	require.NoError(t, err)
	require.Equal(t, "gfs", ca.Model)
	require.Equal(t, []time.Time{
		time.Date(2022, 1, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC),
	}, ca.Dates)
	require.Equal(t, []int{0, 1, 2}, ca.Fxx)
	require.Equal(t, []string{"aws", "google"}, ca.Config.Priority)
	require.True(t, ca.Config.OverwriteSet, "显式 --overwrite=false 也必须记录为已设置")
	require.False(t, ca.Config.Overwrite)
}

func TestParseArgs_Validation(t *testing.T) {
	_, err := parseArgs("download", []string{"--model", "hrrr"}, io.Discard)
	require.Error(t, err, "缺少 --date")

	_, err = parseArgs("inventory", []string{"--date", "2022-01-01", "--fxx", "0-3"}, io.Discard)
	require.Error(t, err, "inventory 只接受单个 fxx")

	_, err = parseArgs("netcdf", []string{"--date", "2022-01-01"}, io.Discard)
	require.Error(t, err, "netcdf 需要 --out")

	_, err = parseArgs("download", []string{"--date", "2022-01-01", "extra"}, io.Discard)
	require.Error(t, err)

	ca, err := parseArgs("latest", []string{"--max-back", "6"}, io.Discard)
	require.NoError(t, err)
	require.Empty(t, ca.Dates)
	require.Equal(t, 6, ca.MaxBack)
	require.False(t, ca.Config.OverwriteSet)
}
