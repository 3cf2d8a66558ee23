// Package models 加载 HCL 描述的模式目录：每个模式有哪些产品、镜像按什么顺序尝试、
// 索引文件如何命名与解析。镜像列表是数据而不是代码。
package models

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/John-Robertt/herbie/internal/domain"
)

//go:embed catalog.hcl
var defaultCatalog []byte

// 索引格式。
const (
	StyleWgrib2  = "wgrib2"
	StyleEccodes = "eccodes"
)

type catalogFile struct {
	Models []*modelBlock `hcl:"model,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type modelBlock struct {
	Name           string            `hcl:"name,label"`
	Description    string            `hcl:"description,optional"`
	DefaultProduct string            `hcl:"default_product"`
	Products       map[string]string `hcl:"products,optional"`
	IdxSuffix      []string          `hcl:"idx_suffix,optional"`
	IdxStyle       string            `hcl:"idx_style,optional"`
	IdxReplaceExt  bool              `hcl:"idx_replace_ext,optional"`
	Sources        []*sourceBlock    `hcl:"source,block"`
	Listing        *listingBlock     `hcl:"listing,block"`
}

type sourceBlock struct {
	Name string         `hcl:"name,label"`
	URL  hcl.Expression `hcl:"url"`
}

type listingBlock struct {
	URL     string `hcl:"url"`
	Pattern string `hcl:"pattern"`
}

// Catalog 是按名称索引的模式集合。
type Catalog struct {
	models map[string]*Model
}

// Model 是单个模式的目录项。
type Model struct {
	Name           string
	Description    string
	DefaultProduct string
	Products       map[string]string
	IdxSuffix      []string
	IdxStyle       string
	IdxReplaceExt  bool
	Sources        []Source
	Listing        *Listing
}

// Source 是一个镜像：名称 + URL 模板。
type Source struct {
	Name string
	url  hcl.Expression
}

// Listing 描述可抓取的运行目录索引页；Pattern 的第一个捕获组是 YYYYMMDD。
type Listing struct {
	URL     string
	Pattern *regexp.Regexp
}

// LoadDefault 只加载内置目录。
func LoadDefault() (*Catalog, error) {
	return Load()
}

// Load 加载内置目录，再按顺序合并 paths 中的 HCL 文件；同名模式后者覆盖前者。
// 不存在的路径视为未配置。
func Load(paths ...string) (*Catalog, error) {
	parser := hclparse.NewParser()
	cat := &Catalog{models: map[string]*Model{}}

	f, diags := parser.ParseHCL(defaultCatalog, "catalog.hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse built-in catalog: %w", diags)
	}
	if err := cat.merge(f, "catalog.hcl"); err != nil {
		return nil, err
	}

	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing catalog %s: %w", p, err)
		}
		f, diags := parser.ParseHCLFile(p)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", p, diags)
		}
		if err := cat.merge(f, p); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Parse 只解析 src，不带内置目录；测试与嵌入方使用。
func Parse(src []byte, filename string) (*Catalog, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	cat := &Catalog{models: map[string]*Model{}}
	if err := cat.merge(f, filename); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) merge(f *hcl.File, filename string) error {
	var root catalogFile
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	for _, b := range root.Models {
		m, err := translateModel(b)
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
		c.models[m.Name] = m
	}
	return nil
}

func translateModel(b *modelBlock) (*Model, error) {
	name := strings.ToLower(strings.TrimSpace(b.Name))
	if name == "" {
		return nil, fmt.Errorf("model 名称不能为空")
	}
	if len(b.Sources) == 0 {
		return nil, fmt.Errorf("model %q 未声明任何 source", name)
	}

	m := &Model{
		Name:           name,
		Description:    b.Description,
		DefaultProduct: b.DefaultProduct,
		Products:       b.Products,
		IdxSuffix:      b.IdxSuffix,
		IdxStyle:       b.IdxStyle,
		IdxReplaceExt:  b.IdxReplaceExt,
	}
	if m.IdxStyle == "" {
		m.IdxStyle = StyleWgrib2
	}
	if m.IdxStyle != StyleWgrib2 && m.IdxStyle != StyleEccodes {
		return nil, fmt.Errorf("model %q: 未知 idx_style %q", name, m.IdxStyle)
	}
	if len(m.IdxSuffix) == 0 {
		m.IdxSuffix = []string{".idx"}
	}

	seen := map[string]struct{}{}
	for _, s := range b.Sources {
		sn := strings.ToLower(strings.TrimSpace(s.Name))
		if sn == "" {
			return nil, fmt.Errorf("model %q: source 名称不能为空", name)
		}
		if _, dup := seen[sn]; dup {
			return nil, fmt.Errorf("model %q: 重复的 source %q", name, sn)
		}
		seen[sn] = struct{}{}
		m.Sources = append(m.Sources, Source{Name: sn, url: s.URL})
	}

	if b.Listing != nil {
		re, err := regexp.Compile(b.Listing.Pattern)
		if err != nil {
			return nil, fmt.Errorf("model %q: listing pattern 非法：%w", name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("model %q: listing pattern 需要一个捕获组（YYYYMMDD）", name)
		}
		m.Listing = &Listing{URL: b.Listing.URL, Pattern: re}
	}
	return m, nil
}

// Model 按名称（大小写不敏感）查找模式。
func (c *Catalog) Model(name string) (*Model, error) {
	m, ok := c.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &domain.UnknownModelError{Model: name}
	}
	return m, nil
}

// Names 返回按字母序排列的模式名。
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.models))
	for n := range c.models {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
