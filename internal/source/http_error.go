package source

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示镜像返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// NotFound 判断状态码是否意味着“该镜像上没有这个文件”。
func (e *HTTPStatusError) NotFound() bool {
	return e != nil && (e.StatusCode == 404 || e.StatusCode == 410)
}
