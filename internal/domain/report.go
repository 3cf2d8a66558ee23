package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// BatchReport 是对外稳定输出（stdout JSON / report.json）的结构。
type BatchReport struct {
	SaveDir string `json:"save_dir"`
	Search  string `json:"search"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int   `json:"processed"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// ItemResult 是单次预报（一个 ModelRun）的处理结果。
type ItemResult struct {
	Model   string    `json:"model"`
	Product string    `json:"product"`
	Date    time.Time `json:"date"`
	Fxx     int       `json:"fxx"`

	Source     string     `json:"source"`
	URL        string     `json:"url"`
	Provenance Provenance `json:"provenance,omitempty"`
	Path       string     `json:"path"`
	Bytes      int64      `json:"bytes"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Attempts []SourceAttemptResult `json:"attempts"`
}

// SourceAttemptResult 是 SourceAttempt 的可序列化形式。
type SourceAttemptResult struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 model、date、fxx
// 3) summary 由 items 计算得出
func (r *BatchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	for i := range r.Items {
		r.Items[i].Date = r.Items[i].Date.UTC()
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Fxx < b.Fxx
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
			s.Bytes += it.Bytes
		case StatusSkipped:
			s.Skipped++
			s.Bytes += it.Bytes
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type Alias BatchReport
	return json.Marshal(Alias(r))
}

// AttemptResults 把探测轨迹转为可序列化形式。
func AttemptResults(attempts []SourceAttempt) []SourceAttemptResult {
	out := make([]SourceAttemptResult, 0, len(attempts))
	for _, a := range attempts {
		r := SourceAttemptResult{Source: a.Source, URL: a.URL}
		if a.Err != nil {
			r.ErrorMsg = a.Err.Error()
		}
		out = append(out, r)
	}
	return out
}
