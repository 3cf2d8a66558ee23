package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestBatchReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	d0 := time.Date(2022, 1, 1, 6, 0, 0, 0, time.UTC)
	r := BatchReport{
		SaveDir:    "/abs/path",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Model: "hrrr", Date: d0, Fxx: 2, Status: StatusSkipped},
			{Model: "gfs", Date: d0, Fxx: 0, Status: StatusFailed},
			{Model: "hrrr", Date: d0, Fxx: 1, Status: StatusProcessed, Bytes: 10},
			{Model: "hrrr", Date: d0.Add(-time.Hour), Fxx: 5, Status: StatusProcessed, Bytes: 5},
		},
	}

	r.Finalize()

	got := []string{}
	for _, it := range r.Items {
		got = append(got, it.Model+it.Date.Format("15")+string(rune('0'+it.Fxx)))
	}
	want := []string{"gfs060", "hrrr055", "hrrr061", "hrrr062"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：%v", got)
		}
	}
	if r.Summary.Processed != 2 || r.Summary.Skipped != 1 || r.Summary.Failed != 1 || r.Summary.Bytes != 15 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestBatchReport_Finalize_BytesIncludeSkippedFiles(t *testing.T) {
	d0 := time.Date(2022, 1, 1, 6, 0, 0, 0, time.UTC)
	r := BatchReport{
		Items: []ItemResult{
			{Model: "hrrr", Date: d0, Fxx: 0, Status: StatusProcessed, Bytes: 100},
			{Model: "hrrr", Date: d0, Fxx: 1, Status: StatusSkipped, Bytes: 400},
			{Model: "hrrr", Date: d0, Fxx: 2, Status: StatusFailed, Bytes: 7},
		},
	}
	r.Finalize()
	if r.Summary.Bytes != 500 {
		t.Fatalf("summary.bytes 应包含已缓存文件的大小（不含失败条目），实际 %d", r.Summary.Bytes)
	}
}

func TestErrorCode_Classification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&SourceNotFoundError{}, ErrCodeSourceNotFound},
		{&IndexUnavailableError{Path: "x"}, ErrCodeIndexUnavailable},
		{ErrEmptyInventory, ErrCodeEmptyInventory},
		{&NoMatchError{Pattern: "TMP"}, ErrCodeNoMatch},
		{&RangeFetchError{Err: errors.New("boom")}, ErrCodeFetchFailed},
		{&MalformedIndexError{Line: 1}, ErrCodeMalformedIndex},
		{&UnknownModelError{Model: "x"}, ErrCodeUnknownModel},
		{errors.New("other"), ErrCodeIOFailed},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err, ErrCodeIOFailed); got != c.want {
			t.Fatalf("ErrorCode(%T) = %q，期望 %q", c.err, got, c.want)
		}
	}
}
