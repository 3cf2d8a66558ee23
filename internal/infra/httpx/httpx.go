package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMetaTimeout = 30 * time.Second
	defaultRetryMax    = 2
)

// UserAgent 是所有请求默认携带的 UA；部分镜像（NOMADS）会拒绝空 UA。
const UserAgent = "herbie-go/1.0 (+https://github.com/John-Robertt/herbie)"

// Transport 把“UA + 代理 + 有界重试”固化为统一网络策略。
//
// 只对可重放的请求（GET/HEAD 且无 body）重试，且只在传输层错误时重试；
// HTTP 状态码由调用方解释（404 对 idx 探测是正常分支）。
type Transport struct {
	Base http.RoundTripper

	UserAgent string

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			ua := t.UserAgent
			if ua == "" {
				ua = UserAgent
			}
			r.Header.Set("User-Agent", ua)
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewMetaClient 构造用于 HEAD 探测与 idx 下载的 client（带总超时）。
func NewMetaClient(proxyURL string) (*http.Client, error) {
	c, err := newClient(proxyURL)
	if err != nil {
		return nil, err
	}
	c.Timeout = defaultMetaTimeout
	return c, nil
}

// NewDataClient 构造用于 GRIB 下载的 client。
// 完整文件可能有数百 MB，不设总超时；只限制握手与首字节等待时间。
func NewDataClient(proxyURL string) (*http.Client, error) {
	return newClient(proxyURL)
}

func newClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: UserAgent,
			RetryMax:  defaultRetryMax,
		},
	}, nil
}
