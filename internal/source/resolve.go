// Package source 在候选镜像中找出第一个真正提供预报文件的地址。
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
)

// Resolved 是探测成功的镜像。ContentLength 为 -1 表示镜像未报告大小。
type Resolved struct {
	Source        string
	URL           string
	ContentLength int64
}

// Local 是本地文件模式下的来源名。
const Local = "local"

// Resolve 按顺序对每个候选发 HEAD，第一个 2xx 胜出。
//
// 约束：
// - 不做重试（传输层重试由 httpx 统一处理）
// - 每个候选的结果都记录进 attempts，全部失败时随 SourceNotFoundError 返回
// - ctx 取消立即返回，不再尝试后续镜像
func Resolve(ctx context.Context, c *http.Client, run domain.ModelRun, candidates []models.Candidate) (Resolved, []domain.SourceAttempt, error) {
	if c == nil {
		c = http.DefaultClient
	}
	logger := ctxlog.FromContext(ctx)

	var attempts []domain.SourceAttempt
	for _, cand := range candidates {
		size, err := probe(ctx, c, cand.URL)
		attempts = append(attempts, domain.SourceAttempt{Source: cand.Source, URL: cand.URL, Err: err})
		if err == nil {
			logger.Debug("source resolved", "run", run.String(), "source", cand.Source, "url", cand.URL, "size", size)
			return Resolved{Source: cand.Source, URL: cand.URL, ContentLength: size}, attempts, nil
		}
		logger.Debug("source unavailable", "run", run.String(), "source", cand.Source, "error", err)
		if ctx.Err() != nil {
			return Resolved{}, attempts, ctx.Err()
		}
	}
	return Resolved{}, attempts, &domain.SourceNotFoundError{Run: run, Attempts: attempts}
}

// probe 先发 HEAD；镜像拒绝 HEAD（405/501）时退化为 Range: bytes=0-0 的 GET。
func probe(ctx context.Context, c *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return -1, err
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.ContentLength, nil
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		return probeRange(ctx, c, url)
	default:
		return -1, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
}

func probeRange(ctx context.Context, c *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return -1, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := c.Do(req)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	switch resp.StatusCode {
	case http.StatusPartialContent:
		var start, end, total int64
		if _, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); err == nil {
			return total, nil
		}
		return -1, nil
	case http.StatusOK:
		return resp.ContentLength, nil
	default:
		return -1, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
}
