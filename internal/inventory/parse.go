// Package inventory 把 idx 文本解析为按字节区间排列的字段目录，并按正则筛选。
package inventory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
)

// Parse 按 style 解析 idx 原文。空文本得到空（合法）目录。
func Parse(raw []byte, style string) ([]domain.Record, error) {
	switch style {
	case "", models.StyleWgrib2:
		return parseWgrib2(raw)
	case models.StyleEccodes:
		return parseEccodes(raw)
	default:
		return nil, fmt.Errorf("未知 idx 格式：%q", style)
	}
}

// parseWgrib2 解析 `n[.m]:offset:d=YYYYMMDDHH:VAR:LEVEL:FCST:...`。
//
// 结束偏移取下一个不同 offset；与上一条 offset 相同的子 message（n.2、n.3…）
// 折叠进上一条记录的 Sub。最后一条记录 End=OpenEnd。
func parseWgrib2(raw []byte) ([]domain.Record, error) {
	var recs []domain.Record

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 4 {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "字段不足"}
		}
		off, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil || off < 0 {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "offset 非法"}
		}

		search := ":" + strings.TrimRight(strings.Join(fields[3:], ":"), ":")

		if n := len(recs); n > 0 && recs[n-1].Start == off {
			recs[n-1].Sub = append(recs[n-1].Sub, search)
			continue
		}
		if n := len(recs); n > 0 && off < recs[n-1].Start {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "offset 未递增"}
		}

		rec := domain.Record{
			Message:  fields[0],
			Start:    off,
			End:      domain.OpenEnd,
			Search:   search,
			Variable: fields[3],
		}
		if len(fields) > 4 {
			rec.Level = fields[4]
		}
		if len(fields) > 5 {
			rec.Forecast = fields[5]
		}
		if d, ok := strings.CutPrefix(fields[2], "d="); ok {
			if t, err := parseRefTime(d); err == nil {
				rec.ReferenceTime = t
			}
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for i := 0; i+1 < len(recs); i++ {
		recs[i].End = recs[i+1].Start
	}
	return recs, nil
}

func parseRefTime(s string) (time.Time, error) {
	switch len(s) {
	case 10:
		return time.Parse("2006010215", s)
	case 12:
		return time.Parse("200601021504", s)
	case 8:
		return time.Parse("20060102", s)
	default:
		return time.Time{}, fmt.Errorf("无法识别的时间：%q", s)
	}
}

// eccodesLine 是 eccodes JSON 行的子集。
type eccodesLine struct {
	Date     string       `json:"date"`
	Time     string       `json:"time"`
	Step     string       `json:"step"`
	Param    string       `json:"param"`
	Levtype  string       `json:"levtype"`
	Levelist string       `json:"levelist"`
	Number   string       `json:"number"`
	Offset   *json.Number `json:"_offset"`
	Length   *json.Number `json:"_length"`
}

// parseEccodes 解析 ECMWF 开放数据的 JSON 行 idx。End = _offset + _length。
// 只有最后一条（按 offset 排序后）允许缺少 _length，此时 End=OpenEnd。
func parseEccodes(raw []byte) ([]domain.Record, error) {
	type withLine struct {
		rec  domain.Record
		line int
		text string
	}
	var rows []withLine

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var l eccodesLine
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&l); err != nil {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "JSON 无效：" + err.Error()}
		}
		if l.Offset == nil {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "缺少 _offset"}
		}
		off, err := l.Offset.Int64()
		if err != nil || off < 0 {
			return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "_offset 非法"}
		}
		end := domain.OpenEnd
		if l.Length != nil {
			n, err := l.Length.Int64()
			if err != nil || n <= 0 {
				return nil, &domain.MalformedIndexError{Line: lineNo, Text: line, Reason: "_length 非法"}
			}
			end = off + n
		}

		level := strings.TrimSpace(strings.Join([]string{l.Levelist, l.Levtype}, " "))
		parts := []string{l.Param}
		for _, p := range []string{l.Levelist, l.Levtype, l.Number, l.Step} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		rec := domain.Record{
			Message:  strconv.Itoa(len(rows) + 1),
			Start:    off,
			End:      end,
			Search:   ":" + strings.Join(parts, ":"),
			Variable: l.Param,
			Level:    level,
			Forecast: l.Step,
		}
		if t, err := time.Parse("20060102", l.Date); err == nil {
			if hhmm, err := strconv.Atoi(l.Time); err == nil {
				t = t.Add(time.Duration(hhmm/100)*time.Hour + time.Duration(hhmm%100)*time.Minute)
			}
			rec.ReferenceTime = t
		}
		rows = append(rows, withLine{rec: rec, line: lineNo, text: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].rec.Start < rows[j].rec.Start })
	out := make([]domain.Record, 0, len(rows))
	for i, r := range rows {
		last := i == len(rows)-1
		if r.rec.Open() && !last {
			return nil, &domain.MalformedIndexError{Line: r.line, Text: r.text, Reason: "非最后一条记录缺少 _length"}
		}
		if !last && r.rec.End > rows[i+1].rec.Start {
			return nil, &domain.MalformedIndexError{Line: r.line, Text: r.text, Reason: "字节区间重叠"}
		}
		out = append(out, r.rec)
	}
	return out, nil
}
