package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/John-Robertt/herbie/internal/ctxlog"
)

// ErrDecoderUnavailable 表示外部解码工具不可用。
var ErrDecoderUnavailable = errors.New("GRIB 解码工具不可用")

// Decoder 把 GRIB 文件解码为 Dataset。返回后不得再持有 gribPath 的句柄。
type Decoder interface {
	Decode(ctx context.Context, gribPath string) (*Dataset, error)
}

// Wgrib2Decoder 通过 `wgrib2 <grib> -netcdf <tmp.nc>` 转换，再读回 NetCDF。
type Wgrib2Decoder struct {
	// Cmd 为空时使用 "wgrib2"。
	Cmd string
	// TempDir 为空时使用系统临时目录。
	TempDir string
}

func (d Wgrib2Decoder) Decode(ctx context.Context, gribPath string) (*Dataset, error) {
	cmd := strings.TrimSpace(d.Cmd)
	if cmd == "" {
		cmd = "wgrib2"
	}
	bin, err := exec.LookPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w：%v", ErrDecoderUnavailable, err)
	}

	tmp, err := os.CreateTemp(d.TempDir, "herbie-*.nc")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpName)

	var stderr bytes.Buffer
	c := exec.CommandContext(ctx, bin, gribPath, "-netcdf", tmpName)
	c.Stderr = &stderr
	ctxlog.FromContext(ctx).Debug("decoding grib", "path", gribPath, "tool", bin)
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("wgrib2 转换失败：%w: %s", err, msg)
		}
		return nil, fmt.Errorf("wgrib2 转换失败：%w", err)
	}

	ds, err := Open(tmpName)
	if err != nil {
		return nil, err
	}
	ds.Source = gribPath
	return ds, nil
}
