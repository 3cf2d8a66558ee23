package inventory

import (
	"fmt"

	"github.com/John-Robertt/herbie/internal/domain"
)

// Range 是一个待下载的字节区间 [Start, End)；End == domain.OpenEnd 表示到文件末尾。
type Range struct {
	Start int64
	End   int64
}

func (r Range) Open() bool { return r.End == domain.OpenEnd }

// Header 返回 HTTP Range 头的值（闭区间）。
func (r Range) Header() string {
	if r.Open() {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1)
}

// Length 返回区间长度；open-ended 区间需要 total。
func (r Range) Length(total int64) (int64, bool) {
	if !r.Open() {
		return r.End - r.Start, true
	}
	if total < 0 {
		return 0, false
	}
	return total - r.Start, true
}

// Coalesce 把首尾相接（a.End == b.Start）的记录合并为一个区间，字节总数不变。
func Coalesce(records []domain.Record) []Range {
	var out []Range
	for _, r := range records {
		if n := len(out); n > 0 && !out[n-1].Open() && out[n-1].End == r.Start {
			out[n-1].End = r.End
			continue
		}
		out = append(out, Range{Start: r.Start, End: r.End})
	}
	return out
}

// Size 返回 ranges 的理论总字节数；包含 open-ended 区间而 total 未知时报错。
func Size(ranges []Range, total int64) (int64, error) {
	var sum int64
	for _, r := range ranges {
		n, ok := r.Length(total)
		if !ok {
			return 0, fmt.Errorf("区间 %s 的结束位置未知（远端未报告文件大小）", r.Header())
		}
		if n < 0 {
			return 0, fmt.Errorf("区间 %s 超出文件大小 %d", r.Header(), total)
		}
		sum += n
	}
	return sum, nil
}
