package inventory

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
)

func hrrrInventory(t *testing.T) domain.Inventory {
	t.Helper()
	recs, err := Parse([]byte(hrrrIdx), models.StyleWgrib2)
	require.NoError(t, err)
	return domain.Inventory{Records: recs, Provenance: domain.ProvenanceRemote, Source: "aws"}
}

func TestMatch_EmptyPatternIsWholeFile(t *testing.T) {
	got, err := Match(hrrrInventory(t), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].Start)
	require.True(t, got[0].Open())
}

func TestMatch_KeepsOrderAndSubMessages(t *testing.T) {
	got, err := Match(hrrrInventory(t), ":(TMP|VGRD|REFC):")
	require.NoError(t, err)

	var msgs []string
	for _, r := range got {
		msgs = append(msgs, r.Message)
	}
	if diff := cmp.Diff([]string{"1", "3", "4"}, msgs); diff != "" {
		t.Fatalf("匹配结果不符合预期 (-want +got):\n%s", diff)
	}
}

func TestMatch_NoMatch(t *testing.T) {
	_, err := Match(hrrrInventory(t), ":DOESNOTEXIST:")
	require.True(t, domain.IsNoMatch(err))
	var nm *domain.NoMatchError
	require.True(t, errors.As(err, &nm))
	require.Equal(t, 4, nm.Total)
}

func TestMatch_EmptyInventory(t *testing.T) {
	_, err := Match(domain.Inventory{}, "TMP")
	require.ErrorIs(t, err, domain.ErrEmptyInventory)
	require.False(t, domain.IsNoMatch(err))
}

func TestMatch_InvalidPattern(t *testing.T) {
	_, err := Match(hrrrInventory(t), "(")
	require.Error(t, err)
}

func TestFilter_EmptyPatternReturnsAll(t *testing.T) {
	inv := hrrrInventory(t)
	got, err := Filter(inv, "")
	require.NoError(t, err)
	require.Len(t, got, inv.Len())
}

func TestCoalesceAndSize(t *testing.T) {
	inv := hrrrInventory(t)
	got, err := Match(inv, ":(RETOP|UGRD|TMP):")
	require.NoError(t, err)

	rs := Coalesce(got)
	require.Equal(t, []Range{{Start: 100, End: domain.OpenEnd}}, rs)

	size, err := Size(rs, 1000)
	require.NoError(t, err)
	// Σ(end-start)，最后一条用文件总长补齐。
	require.Equal(t, int64((250-100)+(400-250)+(1000-400)), size)

	_, err = Size(rs, -1)
	require.Error(t, err, "总长未知时 open-ended 区间无法计算大小")
}

func TestCoalesce_Gaps(t *testing.T) {
	inv := hrrrInventory(t)
	got, err := Match(inv, ":(REFC|UGRD):")
	require.NoError(t, err)
	rs := Coalesce(got)
	require.Equal(t, []Range{{0, 100}, {250, 400}}, rs)
	require.Equal(t, "bytes=0-99", rs[0].Header())
	require.Equal(t, "bytes=400-", Range{Start: 400, End: domain.OpenEnd}.Header())

	size, err := Size(rs, -1)
	require.NoError(t, err)
	require.Equal(t, int64(250), size)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, hrrrInventory(t).Records))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "MSG"))
	require.Contains(t, out, "2 m above ground")
	require.Contains(t, out, ":VGRD:10 m above ground:anl")
	require.Contains(t, out, "EOF")
}
