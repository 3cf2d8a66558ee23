// Package index 负责拿到 GRIB 文件的字段索引：优先远端 idx，拿不到时由本地工具生成。
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
	"github.com/John-Robertt/herbie/internal/source"
)

// maxIndexBytes 限制单个 idx 的读取上限（最大的 GFS pgrb2b idx 约 200 KB）。
const maxIndexBytes = 32 << 20

// Fetcher 下载远端 idx。
type Fetcher struct {
	Client *http.Client
}

// Fetch 依次尝试 m.IndexURLs(gribURL)，返回第一个存在的 idx 原文及其 URL。
//
// 403/404/410 视为“该地址没有 idx”，继续下一个；全部不存在时返回 domain.ErrIndexNotFound。
// 其它 HTTP 状态或传输错误直接返回。
func (f Fetcher) Fetch(ctx context.Context, gribURL string, m *models.Model) ([]byte, string, error) {
	c := f.Client
	if c == nil {
		c = http.DefaultClient
	}
	logger := ctxlog.FromContext(ctx)

	for _, u := range m.IndexURLs(gribURL) {
		raw, err := get(ctx, c, u)
		if err == nil {
			logger.Debug("index fetched", "url", u, "bytes", len(raw))
			return raw, u, nil
		}
		var se *source.HTTPStatusError
		if errors.As(err, &se) && (se.NotFound() || se.StatusCode == http.StatusForbidden) {
			logger.Debug("index missing", "url", u, "status", se.StatusCode)
			continue
		}
		return nil, u, fmt.Errorf("下载 idx 失败（%s）：%w", u, err)
	}
	return nil, "", domain.ErrIndexNotFound
}

func get(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &source.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxIndexBytes {
		return nil, fmt.Errorf("idx 超过 %d 字节", maxIndexBytes)
	}
	return b, nil
}
