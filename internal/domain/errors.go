package domain

import (
	"errors"
	"fmt"
	"strings"
)

// 对外稳定的错误码（写入 BatchReport.error_code）。
const (
	ErrCodeSourceNotFound   = "source_not_found"
	ErrCodeIndexUnavailable = "index_unavailable"
	ErrCodeEmptyInventory   = "empty_inventory"
	ErrCodeNoMatch          = "no_match"
	ErrCodeMalformedIndex   = "malformed_index"
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodeIOFailed         = "io_failed"
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeUnknownModel     = "unknown_model"
)

// ErrEmptyInventory 表示对空目录请求子集（无法判断任何字段）。
var ErrEmptyInventory = errors.New("inventory 为空，无法按字段筛选")

// ErrIndexNotFound 表示所有 idx 候选地址都不存在（上层据此回退到本地生成）。
var ErrIndexNotFound = errors.New("远端 idx 不存在")

// SourceAttempt 记录一次镜像探测。
type SourceAttempt struct {
	Source string
	URL    string
	Err    error // nil 表示探测成功
}

// SourceNotFoundError 表示没有任何镜像提供该预报文件。不重试：通常意味着尚未发布或已被清理。
type SourceNotFoundError struct {
	Run      ModelRun
	Attempts []SourceAttempt
}

func (e *SourceNotFoundError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("未找到可用镜像：%s（无候选来源）", e.Run)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return fmt.Sprintf("未找到可用镜像：%s（%s）", e.Run, strings.Join(parts, "; "))
}

// IndexUnavailableError 表示既拿不到远端 idx，也无法在本地生成。
type IndexUnavailableError struct {
	Path string
	Err  error
}

func (e *IndexUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("无法获得 idx（%s）：%v", e.Path, e.Err)
	}
	return fmt.Sprintf("无法获得 idx（%s）", e.Path)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// NoMatchError 表示 pattern 没有命中任何字段。与 ErrEmptyInventory 区分。
type NoMatchError struct {
	Pattern string
	Total   int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("pattern %q 未匹配任何字段（共 %d 条记录）", e.Pattern, e.Total)
}

// MalformedIndexError 表示 idx 文本无法解析。
type MalformedIndexError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedIndexError) Error() string {
	return fmt.Sprintf("idx 第 %d 行无效（%s）：%q", e.Line, e.Reason, e.Text)
}

// RangeFetchError 表示某个字节区间下载失败；整次下载已中止且目标文件未被改动。
type RangeFetchError struct {
	URL   string
	Start int64
	End   int64 // OpenEnd 表示到文件末尾
	Err   error
}

func (e *RangeFetchError) Error() string {
	end := "EOF"
	if e.End != OpenEnd {
		end = fmt.Sprintf("%d", e.End)
	}
	return fmt.Sprintf("下载区间 [%d, %s) 失败（%s）：%v", e.Start, end, e.URL, e.Err)
}

func (e *RangeFetchError) Unwrap() error { return e.Err }

// UnknownModelError 表示模式或产品不在目录中。
type UnknownModelError struct {
	Model   string
	Product string
}

func (e *UnknownModelError) Error() string {
	if e.Product != "" {
		return fmt.Sprintf("模式 %q 不支持产品 %q", e.Model, e.Product)
	}
	return fmt.Sprintf("未知模式：%q", e.Model)
}

func IsSourceNotFound(err error) bool {
	var e *SourceNotFoundError
	return errors.As(err, &e)
}

func IsIndexUnavailable(err error) bool {
	var e *IndexUnavailableError
	return errors.As(err, &e)
}

func IsNoMatch(err error) bool {
	var e *NoMatchError
	return errors.As(err, &e)
}

func IsRangeFetch(err error) bool {
	var e *RangeFetchError
	return errors.As(err, &e)
}

// ErrorCode 把错误归类为对外稳定的错误码；无法识别时返回 fallback。
func ErrorCode(err error, fallback string) string {
	var (
		unknown *UnknownModelError
		bad     *MalformedIndexError
	)
	switch {
	case err == nil:
		return ""
	case IsSourceNotFound(err):
		return ErrCodeSourceNotFound
	case IsIndexUnavailable(err):
		return ErrCodeIndexUnavailable
	case errors.Is(err, ErrEmptyInventory):
		return ErrCodeEmptyInventory
	case IsNoMatch(err):
		return ErrCodeNoMatch
	case errors.As(err, &bad):
		return ErrCodeMalformedIndex
	case IsRangeFetch(err):
		return ErrCodeFetchFailed
	case errors.As(err, &unknown):
		return ErrCodeUnknownModel
	default:
		return fallback
	}
}
