package grid

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	return &Dataset{
		Source:     "x.grib2",
		Attributes: NewAttrs().Set("Conventions", "COARDS").Set("version", 1.5),
		Variables: []Variable{
			{
				Name:       "TMP_2maboveground",
				Dimensions: []string{"latitude"},
				Values:     []float32{280.5, 281.25, 282},
				Attributes: NewAttrs().Set("units", "K"),
			},
			{
				Name:       "latitude",
				Dimensions: []string{"latitude"},
				Values:     []float64{21.1, 21.2, 21.3},
			},
		},
	}
}

func TestDataset_WriteNetCDFRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", "x.nc")
	require.NoError(t, sampleDataset().WriteNetCDF(p))

	ents, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	require.Len(t, ents, 1, "不应残留临时文件")

	got, err := Open(p)
	require.NoError(t, err)
	require.Equal(t, []string{"TMP_2maboveground", "latitude"}, got.Names())

	v, ok := got.Variable("TMP_2maboveground")
	require.True(t, ok)
	require.Equal(t, []float32{280.5, 281.25, 282}, v.Values)
	require.Equal(t, []string{"latitude"}, v.Dimensions)
	units, ok := v.Attributes.Get("units")
	require.True(t, ok)
	require.Equal(t, "K", units)

	conv, ok := got.Attributes.Get("Conventions")
	require.True(t, ok)
	require.Equal(t, "COARDS", conv)
}

func TestDataset_VariableMissing(t *testing.T) {
	_, ok := sampleDataset().Variable("UGRD")
	require.False(t, ok)
}

func TestAttrs_OrderAndTypes(t *testing.T) {
	a := NewAttrs().Set("b", int32(1)).Set("a", "x").Set("b", int32(2))
	require.Equal(t, []string{"b", "a"}, a.Keys())
	v, _ := a.Get("b")
	require.Equal(t, int32(2), v)
	ty, ok := a.GetType("b")
	require.True(t, ok)
	require.Equal(t, "int", ty)
	gt, ok := a.GetGoType("a")
	require.True(t, ok)
	require.Equal(t, "string", gt)
	_, ok = a.GetType("missing")
	require.False(t, ok)
}

func TestOpen_NotNetCDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.nc")
	require.NoError(t, os.WriteFile(p, []byte("GRIB...."), 0o644))
	_, err := Open(p)
	require.Error(t, err)
}

func TestWgrib2Decoder_MissingTool(t *testing.T) {
	_, err := Wgrib2Decoder{Cmd: "wgrib2-definitely-not-installed"}.Decode(context.Background(), "x.grib2")
	require.True(t, errors.Is(err, ErrDecoderUnavailable))
}

func TestWgrib2Decoder_BadInput(t *testing.T) {
	if _, err := exec.LookPath("wgrib2"); err != nil {
		t.Skip("wgrib2 未安装")
	}
	p := filepath.Join(t.TempDir(), "x.grib2")
	require.NoError(t, os.WriteFile(p, []byte("not grib"), 0o644))
	_, err := Wgrib2Decoder{TempDir: t.TempDir()}.Decode(context.Background(), p)
	require.Error(t, err)
}
