package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/John-Robertt/herbie/internal/inventory"
	"github.com/John-Robertt/herbie/internal/source"
)

// RangeSource 能按字节区间读取同一份 GRIB 文件。
type RangeSource interface {
	// Name 返回用于错误信息的 URL 或路径。
	Name() string
	Open(ctx context.Context, r inventory.Range) (io.ReadCloser, error)
}

// HTTPSource 通过 HTTP Range 请求读取远端文件；只接受 206。
type HTTPSource struct {
	Client *http.Client
	URL    string
}

func (s HTTPSource) Name() string { return s.URL }

func (s HTTPSource) Open(ctx context.Context, r inventory.Range) (io.ReadCloser, error) {
	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", r.Header())
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, &source.HTTPStatusError{URL: s.URL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// FileSource 从已下载的完整文件中截取区间（本地文件模式下的子集）。
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Open(ctx context.Context, r inventory.Range) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	end := r.End
	if r.Open() {
		end = fi.Size()
	}
	if r.Start > fi.Size() || end > fi.Size() || end < r.Start {
		_ = f.Close()
		return nil, fmt.Errorf("区间 %s 超出文件大小 %d", r.Header(), fi.Size())
	}
	return readCloser{Reader: io.NewSectionReader(f, r.Start, end-r.Start), Closer: f}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
