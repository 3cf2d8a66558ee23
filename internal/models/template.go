package models

import (
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/John-Robertt/herbie/internal/domain"
)

// Candidate 是一次具体运行在某个镜像上的 URL。
type Candidate struct {
	Source string
	URL    string
}

var templateFuncs = map[string]function.Function{
	"format": stdlib.FormatFunc,
	"upper":  stdlib.UpperFunc,
	"lower":  stdlib.LowerFunc,
}

// Product 返回 run 实际使用的产品；空产品取默认值。
// 声明了 products 的模式只接受其中的产品。
func (m *Model) Product(product string) (string, error) {
	p := strings.TrimSpace(product)
	if p == "" {
		p = m.DefaultProduct
	}
	if p == "" {
		return "", &domain.UnknownModelError{Model: m.Name, Product: product}
	}
	if len(m.Products) > 0 {
		if _, ok := m.Products[p]; !ok {
			return "", &domain.UnknownModelError{Model: m.Name, Product: p}
		}
	}
	return p, nil
}

// Candidates 返回 run 的候选 URL，顺序确定：
// priority 为空时按声明顺序；否则只保留 priority 中出现的镜像，并按 priority 排序。
func (m *Model) Candidates(run domain.ModelRun, priority []string) ([]Candidate, error) {
	run, err := m.normalize(run)
	if err != nil {
		return nil, err
	}
	ctx := evalContext(run)

	sources := m.Sources
	if len(priority) > 0 {
		byName := make(map[string]Source, len(m.Sources))
		for _, s := range m.Sources {
			byName[s.Name] = s
		}
		sources = sources[:0:0]
		seen := map[string]struct{}{}
		for _, p := range priority {
			p = strings.ToLower(strings.TrimSpace(p))
			s, ok := byName[p]
			if !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			sources = append(sources, s)
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("model %q: priority %v 中没有可用的 source", m.Name, priority)
		}
	}

	out := make([]Candidate, 0, len(sources))
	for _, s := range sources {
		u, err := s.Render(ctx)
		if err != nil {
			return nil, fmt.Errorf("model %q source %q: %w", m.Name, s.Name, err)
		}
		out = append(out, Candidate{Source: s.Name, URL: u})
	}
	return out, nil
}

// Basename 返回 run 的远端文件名，取第一个声明镜像的 URL 末段；不需要网络。
func (m *Model) Basename(run domain.ModelRun) (string, error) {
	run, err := m.normalize(run)
	if err != nil {
		return "", err
	}
	u, err := m.Sources[0].Render(evalContext(run))
	if err != nil {
		return "", err
	}
	return path.Base(u), nil
}

// IndexURLs 由 GRIB URL 推导出候选 idx URL。
func (m *Model) IndexURLs(gribURL string) []string {
	out := make([]string, 0, len(m.IdxSuffix))
	for _, suf := range m.IdxSuffix {
		base := gribURL
		if m.IdxReplaceExt {
			if ext := path.Ext(gribURL); ext != "" {
				base = strings.TrimSuffix(gribURL, ext)
			}
		}
		out = append(out, base+suf)
	}
	return out
}

func (m *Model) normalize(run domain.ModelRun) (domain.ModelRun, error) {
	p, err := m.Product(run.Product)
	if err != nil {
		return run, err
	}
	return run.WithProduct(p), nil
}

// Render 在 ctx 下求值 URL 模板。
func (s Source) Render(ctx *hcl.EvalContext) (string, error) {
	val, diags := s.url.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("url 模板求值为空")
	}
	sv, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	return sv.AsString(), nil
}

func evalContext(run domain.ModelRun) *hcl.EvalContext {
	d := run.Date.UTC()
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"model":     cty.StringVal(run.Model),
			"product":   cty.StringVal(run.Product),
			"date":      cty.StringVal(d.Format("20060102")),
			"year":      cty.StringVal(d.Format("2006")),
			"month":     cty.StringVal(d.Format("01")),
			"day":       cty.StringVal(d.Format("02")),
			"hour":      cty.NumberIntVal(int64(d.Hour())),
			"fxx":       cty.NumberIntVal(int64(run.Fxx)),
			"timestamp": cty.StringVal(d.Format("20060102150405")),
		},
		Functions: templateFuncs,
	}
}
