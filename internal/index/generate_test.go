package index

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/herbie/internal/domain"
)

func TestWgrib2_MissingTool(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.grib2")
	require.NoError(t, os.WriteFile(p, []byte("GRIB"), 0o644))

	gen := Wgrib2("wgrib2-definitely-not-installed")
	_, err := gen(context.Background(), p)
	require.True(t, domain.IsIndexUnavailable(err), "工具缺失应返回 IndexUnavailableError，实际 %v", err)
}

func TestWgrib2_MissingFile(t *testing.T) {
	_, err := Wgrib2("")(context.Background(), filepath.Join(t.TempDir(), "missing.grib2"))
	require.True(t, domain.IsIndexUnavailable(err))
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable(context.Background(), "x")
	require.True(t, domain.IsIndexUnavailable(err))
}

func TestWgrib2_NotAGribFile(t *testing.T) {
	if _, err := exec.LookPath("wgrib2"); err != nil {
		t.Skip("wgrib2 未安装")
	}
	p := filepath.Join(t.TempDir(), "x.grib2")
	require.NoError(t, os.WriteFile(p, []byte("not a grib file"), 0o644))

	// wgrib2 对非 GRIB 输入的退出码因版本而异；报错时必须归类为 IndexUnavailableError。
	if _, err := Wgrib2("")(context.Background(), p); err != nil {
		require.True(t, domain.IsIndexUnavailable(err))
	}
}
