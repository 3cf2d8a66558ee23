package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/herbie/internal/config"
	"github.com/John-Robertt/herbie/internal/domain"
)

// cliArgs 是各子命令共用的参数。
type cliArgs struct {
	Config config.CLIArgs

	Model   string
	Product string
	Dates   []time.Time
	Fxx     []int
	Search  string
	Verbose bool

	// latest
	MaxBack int
	// netcdf
	Out        string
	RemoveGrib bool
}

type listValue struct {
	sep  string
	vals *[]string
}

func (v listValue) String() string {
	if v.vals == nil {
		return ""
	}
	return strings.Join(*v.vals, v.sep)
}

func (v listValue) Set(s string) error {
	for _, p := range strings.Split(s, v.sep) {
		if p = strings.TrimSpace(p); p != "" {
			*v.vals = append(*v.vals, p)
		}
	}
	return nil
}

// parseArgs 解析子命令参数。date 为空时：latest 使用当前时间，其它命令报错。
func parseArgs(cmd string, args []string, stderr io.Writer) (cliArgs, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		ca        cliArgs
		dates     []string
		priority  []string
		fxx       string
		overwrite bool
	)
	fs.StringVar(&ca.Config.ConfigPath, "config", "", "配置文件路径（默认 ./herbie.json，可选）")
	fs.StringVar(&ca.Model, "model", "hrrr", "模式名称")
	fs.StringVar(&ca.Product, "product", "", "产品（默认使用模式的 default_product）")
	fs.Var(listValue{sep: ",", vals: &dates}, "date", "初始化时间，可重复或逗号分隔（例如 \"2022-01-01 06:00\"）")
	fs.StringVar(&fxx, "fxx", "0", "预报时效：\"0\"、\"0,3,6\"、\"0-6\" 或 \"0-12:3\"")
	fs.StringVar(&ca.Search, "search", "", "字段正则（为空下载完整文件）")
	fs.StringVar(&ca.Config.SaveDir, "save-dir", "", "缓存根目录")
	fs.Var(listValue{sep: ",", vals: &priority}, "priority", "来源优先级，逗号分隔")
	fs.BoolVar(&overwrite, "overwrite", false, "覆盖已存在的文件")
	fs.IntVar(&ca.Config.Concurrency, "concurrency", 0, "并发数（1-32）")
	fs.StringVar(&ca.Config.LogLevel, "log-level", "", "日志级别：debug|info|warn|error")
	fs.StringVar(&ca.Config.LogFormat, "log-format", "", "日志格式：text|json")
	fs.BoolVar(&ca.Verbose, "verbose", false, "以 info 级别输出下载进度")
	if cmd == "latest" {
		fs.IntVar(&ca.MaxBack, "max-back", 24, "最多回退的小时数")
	}
	if cmd == "netcdf" {
		fs.StringVar(&ca.Out, "out", "", "输出 NetCDF 路径（必填）")
		fs.BoolVar(&ca.RemoveGrib, "remove-grib", false, "解码后删除本次新下载的 GRIB 文件")
	}

	if err := fs.Parse(args); err != nil {
		return cliArgs{}, err
	}
	if fs.NArg() > 0 {
		return cliArgs{}, fmt.Errorf("未知参数 %q", fs.Arg(0))
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "overwrite" {
			ca.Config.OverwriteSet = true
		}
	})
	ca.Config.Overwrite = overwrite
	ca.Config.Priority = priority

	if strings.TrimSpace(ca.Model) == "" {
		return cliArgs{}, errors.New("--model 不能为空")
	}
	for _, s := range dates {
		t, err := domain.ParseRunTime(s)
		if err != nil {
			return cliArgs{}, err
		}
		ca.Dates = append(ca.Dates, t)
	}
	if len(ca.Dates) == 0 && cmd != "latest" {
		return cliArgs{}, errors.New("--date 不能为空")
	}
	if cmd != "download" && len(ca.Dates) > 1 {
		return cliArgs{}, fmt.Errorf("%s 只接受一个 --date", cmd)
	}

	steps, err := parseFxx(fxx)
	if err != nil {
		return cliArgs{}, err
	}
	if cmd != "download" && len(steps) > 1 {
		return cliArgs{}, fmt.Errorf("%s 只接受一个 --fxx", cmd)
	}
	ca.Fxx = steps

	if cmd == "netcdf" && strings.TrimSpace(ca.Out) == "" {
		return cliArgs{}, errors.New("--out 不能为空")
	}
	return ca, nil
}

// parseFxx 解析 "0"、"0,3,6"、"0-6"、"0-12:3" 及其组合；结果保持书写顺序并去重。
func parseFxx(s string) ([]int, error) {
	var out []int
	seen := map[int]bool{}
	add := func(v int) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		step := 1
		if i := strings.IndexByte(part, ':'); i >= 0 {
			v, err := strconv.Atoi(part[i+1:])
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("fxx 步长无效：%q", part)
			}
			step, part = v, part[:i]
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		}
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || a < 0 {
			return nil, fmt.Errorf("fxx 无效：%q", part)
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || b < a {
			return nil, fmt.Errorf("fxx 无效：%q", part)
		}
		for v := a; v <= b; v += step {
			add(v)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("--fxx 不能为空")
	}
	return out, nil
}
