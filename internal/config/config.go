package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是在 cwd 下自动发现的配置文件名。
const FileName = "herbie.json"

const (
	DefaultConcurrency = 4
	DefaultWgrib2      = "wgrib2"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// userHomeDir 可在测试中替换。
var userHomeDir = os.UserHomeDir

// CLIArgs 是 CLI 可覆盖的字段，并保留“是否显式指定”的信息，
// 保证 --overwrite=false 这类显式值能覆盖配置文件。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时尝试 <cwd>/herbie.json（可选）。
	ConfigPath string

	SaveDir  string
	Priority []string

	Overwrite    bool
	OverwriteSet bool

	Concurrency int

	LogLevel  string
	LogFormat string
}

// FileConfig 对应 herbie.json 的解析结构。
type FileConfig struct {
	SaveDir     string       `json:"save_dir"`
	Priority    []string     `json:"priority"`
	Overwrite   *bool        `json:"overwrite"`
	Concurrency int          `json:"concurrency"`
	Proxy       *ProxyConfig `json:"proxy"`
	Wgrib2      string       `json:"wgrib2"`
	ModelsFile  string       `json:"models_file"`
	LogLevel    string       `json:"log_level"`
	LogFormat   string       `json:"log_format"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置；路径均为绝对路径。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；未读取时为空

	SaveDir     string
	Priority    []string
	Overwrite   bool
	Concurrency int
	ProxyURL    string
	Wgrib2      string
	ModelsFile  string
	LogLevel    string
	LogFormat   string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 --config：读取该文件（必选）
// 2) 否则尝试 <cwd>/herbie.json（可选）
//
// 覆盖优先级：CLI > 配置文件 > 默认值。
// 配置文件中的相对路径相对于配置文件所在目录；CLI 的相对路径相对于 cwd。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}

	// save_dir：CLI > config > $HOME/data
	var saveDir string
	switch {
	case strings.TrimSpace(cli.SaveDir) != "":
		saveDir = absCleanFrom(cwdAbs, cli.SaveDir)
	case strings.TrimSpace(fc.SaveDir) != "":
		saveDir = absCleanFrom(cfgDir, expandHome(fc.SaveDir))
	default:
		home, err := userHomeDir()
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("无法确定默认 save_dir：%w", err)}
		}
		saveDir = filepath.Join(home, "data")
	}

	priority := normalizeList(fc.Priority)
	if len(cli.Priority) > 0 {
		priority = normalizeList(cli.Priority)
	}

	overwrite := false
	if cli.OverwriteSet {
		overwrite = cli.Overwrite
	} else if fc.Overwrite != nil {
		overwrite = *fc.Overwrite
	}

	concurrency := fc.Concurrency
	if cli.Concurrency != 0 {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%q", proxyURL)}
		}
	}

	wgrib2 := strings.TrimSpace(fc.Wgrib2)
	if wgrib2 == "" {
		wgrib2 = DefaultWgrib2
	} else if strings.ContainsRune(wgrib2, filepath.Separator) {
		wgrib2 = absCleanFrom(cfgDir, wgrib2)
	}

	modelsFile := ""
	if strings.TrimSpace(fc.ModelsFile) != "" {
		modelsFile = absCleanFrom(cfgDir, expandHome(fc.ModelsFile))
	}

	level := firstNonEmpty(cli.LogLevel, fc.LogLevel, DefaultLogLevel)
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		level = strings.ToLower(level)
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", level)}
	}
	format := firstNonEmpty(cli.LogFormat, fc.LogFormat, DefaultLogFormat)
	switch strings.ToLower(format) {
	case "text", "json":
		format = strings.ToLower(format)
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("log_format 只能是 text/json，实际是 %q", format)}
	}

	return EffectiveConfig{
		ConfigPath:  cfgPath,
		SaveDir:     saveDir,
		Priority:    priority,
		Overwrite:   overwrite,
		Concurrency: concurrency,
		ProxyURL:    proxyURL,
		Wgrib2:      wgrib2,
		ModelsFile:  modelsFile,
		LogLevel:    level,
		LogFormat:   format,
	}, nil
}

func normalizeList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// expandHome 展开开头的 "~/"。
func expandHome(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := userHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
