// Package fetch 把远端（或本地）GRIB 文件的全部或部分字节原子地写入缓存路径。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/infra/fsx"
	"github.com/John-Robertt/herbie/internal/inventory"
	"github.com/John-Robertt/herbie/internal/source"
)

// Downloader 执行下载。单个实例内部严格串行。
//
// 约束：
// - 所有写入先落到同目录临时文件，全部成功后才 rename 到 dst
// - 任一失败都删除临时文件，dst 保持原样
// - 写入字节数必须等于理论大小（已知时）
type Downloader struct {
	Client *http.Client
	// Verbose 为 true 时逐区间输出 Info 日志，否则为 Debug。
	Verbose bool
}

// Full 下载 url 的完整文件到 dst。
func (d Downloader) Full(ctx context.Context, url, dst string) (int64, error) {
	c := d.Client
	if c == nil {
		c = http.DefaultClient
	}
	logger := ctxlog.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, &domain.RangeFetchError{URL: url, Start: 0, End: domain.OpenEnd, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &domain.RangeFetchError{URL: url, Start: 0, End: domain.OpenEnd, Err: &source.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}}
	}

	want := resp.ContentLength
	n, err := fsx.WriteStreamAtomic(filepath.Dir(dst), filepath.Base(dst), func(w io.Writer) (int64, error) {
		n, err := io.Copy(w, resp.Body)
		if err != nil {
			return n, &domain.RangeFetchError{URL: url, Start: 0, End: domain.OpenEnd, Err: err}
		}
		if want >= 0 && n != want {
			return n, &domain.RangeFetchError{URL: url, Start: 0, End: domain.OpenEnd, Err: sizeMismatch(n, want)}
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	d.progress(ctx, logger, "downloaded", "url", url, "path", dst, "bytes", n)
	return n, nil
}

// Ranges 依次读取 ranges 并按顺序拼接到 dst。total 为源文件总长（未知时 -1），
// 用于补齐 open-ended 区间并校验理论大小。
func (d Downloader) Ranges(ctx context.Context, src RangeSource, ranges []inventory.Range, total int64, dst string) (int64, error) {
	if len(ranges) == 0 {
		return 0, errors.New("没有需要下载的区间")
	}
	logger := ctxlog.FromContext(ctx)

	want, err := inventory.Size(ranges, total)
	if err != nil {
		want = -1
	}

	n, err := fsx.WriteStreamAtomic(filepath.Dir(dst), filepath.Base(dst), func(w io.Writer) (int64, error) {
		var written int64
		for i, r := range ranges {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			n, err := copyRange(ctx, src, r, w)
			written += n
			if err != nil {
				return written, &domain.RangeFetchError{URL: src.Name(), Start: r.Start, End: r.End, Err: err}
			}
			if l, ok := r.Length(total); ok && n != l {
				return written, &domain.RangeFetchError{URL: src.Name(), Start: r.Start, End: r.End, Err: sizeMismatch(n, l)}
			}
			d.progress(ctx, logger, "range fetched", "source", src.Name(), "range", r.Header(), "index", i+1, "of", len(ranges), "bytes", n)
		}
		if want >= 0 && written != want {
			return written, &domain.RangeFetchError{URL: src.Name(), Start: ranges[0].Start, End: ranges[len(ranges)-1].End, Err: sizeMismatch(written, want)}
		}
		return written, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func copyRange(ctx context.Context, src RangeSource, r inventory.Range, w io.Writer) (int64, error) {
	rc, err := src.Open(ctx, r)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(w, rc)
}

func (d Downloader) progress(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	level := slog.LevelDebug
	if d.Verbose {
		level = slog.LevelInfo
	}
	logger.Log(ctx, level, msg, args...)
}

func sizeMismatch(got, want int64) error {
	return fmt.Errorf("写入 %d 字节，期望 %d 字节", got, want)
}
