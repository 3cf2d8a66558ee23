package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/John-Robertt/herbie/internal/domain"
)

// Generator 从本地 GRIB 文件生成 wgrib2 风格的 idx 文本。
type Generator func(ctx context.Context, gribPath string) ([]byte, error)

// Wgrib2 返回调用 `<cmd> -s <grib>` 的 Generator；cmd 为空时使用 "wgrib2"。
// 工具缺失或执行失败都返回 *domain.IndexUnavailableError。
func Wgrib2(cmd string) Generator {
	if strings.TrimSpace(cmd) == "" {
		cmd = "wgrib2"
	}
	return func(ctx context.Context, gribPath string) ([]byte, error) {
		if _, err := os.Stat(gribPath); err != nil {
			return nil, &domain.IndexUnavailableError{Path: gribPath, Err: err}
		}
		bin, err := exec.LookPath(cmd)
		if err != nil {
			return nil, &domain.IndexUnavailableError{Path: gribPath, Err: fmt.Errorf("找不到 %s：%w", cmd, err)}
		}

		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, bin, "-s", gribPath)
		c.Stdout = &stdout
		c.Stderr = &stderr
		if err := c.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			return nil, &domain.IndexUnavailableError{Path: gribPath, Err: err}
		}
		return stdout.Bytes(), nil
	}
}

// Unavailable 是总是失败的 Generator，用于显式禁用本地生成。
func Unavailable(ctx context.Context, gribPath string) ([]byte, error) {
	return nil, &domain.IndexUnavailableError{Path: gribPath, Err: errors.New("本地 idx 生成已禁用")}
}
