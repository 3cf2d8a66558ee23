package domain

import (
	"fmt"
	"strings"
	"time"
)

// ModelRun 标识一次预报：模式 + 产品 + 起报时刻（UTC，整点）+ 预报时效。
//
// 约束：构造后不可变；相同的时刻无论以字符串还是 time.Time 传入，都得到相等的 ModelRun。
type ModelRun struct {
	Model   string
	Product string
	Date    time.Time
	Fxx     int
}

// runTimeLayouts 是 ParseRunTime 接受的输入格式（按顺序尝试）。
// "15" 允许一位小时（例如 "2022-12-13 6:00"）。
var runTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15",
	"2006-01-02T15",
	"2006-01-02",
	"200601021504",
	"2006010215",
	"20060102",
}

// ParseRunTime 解析用户输入的起报时刻；无时区信息时视为 UTC。
func ParseRunTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("日期不能为空")
	}
	for _, layout := range runTimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期：%q", s)
}

// NewModelRun 校验并规范化一次预报标识。date 会被转换为 UTC 并截断到整点。
func NewModelRun(model, product string, date time.Time, fxx int) (ModelRun, error) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return ModelRun{}, fmt.Errorf("model 不能为空")
	}
	if date.IsZero() {
		return ModelRun{}, fmt.Errorf("date 不能为空")
	}
	if fxx < 0 {
		return ModelRun{}, fmt.Errorf("fxx 不能为负数：%d", fxx)
	}
	return ModelRun{
		Model:   model,
		Product: strings.TrimSpace(product),
		Date:    date.UTC().Truncate(time.Hour),
		Fxx:     fxx,
	}, nil
}

// WithProduct 返回替换了 product 的副本（用于补齐模式默认产品）。
func (r ModelRun) WithProduct(product string) ModelRun {
	r.Product = product
	return r
}

// ValidTime 是预报对应的有效时刻。
func (r ModelRun) ValidTime() time.Time {
	return r.Date.Add(time.Duration(r.Fxx) * time.Hour)
}

func (r ModelRun) String() string {
	return fmt.Sprintf("%s/%s %s F%02d", r.Model, r.Product, r.Date.Format("2006-01-02 15:04"), r.Fxx)
}
