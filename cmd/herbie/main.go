package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/John-Robertt/herbie/internal/app/batch"
	"github.com/John-Robertt/herbie/internal/config"
	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/grid"
	"github.com/John-Robertt/herbie/internal/herbie"
	"github.com/John-Robertt/herbie/internal/index"
	"github.com/John-Robertt/herbie/internal/infra/httpx"
	"github.com/John-Robertt/herbie/internal/inventory"
	"github.com/John-Robertt/herbie/internal/models"
)

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}

func runMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(stdout)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[0] {
	case "download":
		return downloadCmd(ctx, args[1:], stdout, stderr)
	case "inventory":
		return inventoryCmd(ctx, args[1:], stdout, stderr)
	case "latest":
		return latestCmd(ctx, args[1:], stdout, stderr)
	case "netcdf":
		return netcdfCmd(ctx, args[1:], stdout, stderr)
	case "models":
		return modelsCmd(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "未知命令：%q\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

// env 是子命令共享的运行环境。
type env struct {
	eff    config.EffectiveConfig
	cat    *models.Catalog
	logger *slog.Logger
	meta   *http.Client
	data   *http.Client
}

func setup(ca cliArgs, stderr io.Writer) (env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return env{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	eff, err := config.LoadEffective(cwd, ca.Config)
	if err != nil {
		return env{}, err
	}
	logger := ctxlog.New(eff.LogLevel, eff.LogFormat, stderr)

	var cat *models.Catalog
	if eff.ModelsFile != "" {
		cat, err = models.Load(eff.ModelsFile)
	} else {
		cat, err = models.LoadDefault()
	}
	if err != nil {
		return env{}, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ModelsFile, Err: err}
	}

	meta, err := httpx.NewMetaClient(eff.ProxyURL)
	if err != nil {
		return env{}, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}
	}
	data, err := httpx.NewDataClient(eff.ProxyURL)
	if err != nil {
		return env{}, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}
	}
	return env{eff: eff, cat: cat, logger: logger, meta: meta, data: data}, nil
}

func (e env) options() herbie.Options {
	return herbie.Options{
		SaveDir:    e.eff.SaveDir,
		Priority:   e.eff.Priority,
		Overwrite:  e.eff.Overwrite,
		MetaClient: e.meta,
		DataClient: e.data,
		Generator:  index.Wgrib2(e.eff.Wgrib2),
		Decoder:    grid.Wgrib2Decoder{Cmd: e.eff.Wgrib2},
	}
}

func downloadCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ca, err := parseArgs("download", args, stderr)
	if err != nil {
		return argError(err, stderr)
	}
	e, err := setup(ca, stderr)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(ca, err))
		return 1
	}
	ctx = ctxlog.WithLogger(ctx, e.logger)

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs batch.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	jobs := batch.Jobs(ca.Model, ca.Product, ca.Dates, ca.Fxx)
	rr := batch.ExecuteWithObserver(ctx, e.eff, batch.Deps{
		Catalog:    e.cat,
		Generator:  index.Wgrib2(e.eff.Wgrib2),
		MetaClient: e.meta,
		DataClient: e.data,
		Verbose:    ca.Verbose,
	}, ca.Search, jobs, obs)

	emitReport(stdout, stderr, rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// recordJSON 是 inventory 子命令的机器可读输出。
type recordJSON struct {
	Message  string   `json:"message"`
	Start    int64    `json:"start"`
	End      *int64   `json:"end"`
	Search   string   `json:"search"`
	Sub      []string `json:"sub,omitempty"`
	Variable string   `json:"variable,omitempty"`
	Level    string   `json:"level,omitempty"`
	Forecast string   `json:"forecast,omitempty"`
}

type inventoryJSON struct {
	Model      string            `json:"model"`
	Product    string            `json:"product"`
	Date       time.Time         `json:"date"`
	Fxx        int               `json:"fxx"`
	Source     string            `json:"source"`
	Provenance domain.Provenance `json:"provenance"`
	IndexURL   string            `json:"index_url"`
	Records    []recordJSON      `json:"records"`
}

func inventoryCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ca, err := parseArgs("inventory", args, stderr)
	if err != nil {
		return argError(err, stderr)
	}
	h, e, code := single(ctx, ca, stderr)
	if h == nil {
		return code
	}
	ctx = ctxlog.WithLogger(ctx, e.logger)

	inv, err := h.Inventory(ctx, ca.Search)
	if err != nil {
		return fail(stderr, err)
	}
	if isTTY(stdout) {
		if err := inventory.WriteTable(stdout, inv.Records); err != nil {
			return fail(stderr, err)
		}
		fmt.Fprintf(stderr, "records=%d source=%s provenance=%s\n", inv.Len(), inv.Source, inv.Provenance)
		return 0
	}

	run := h.Run()
	out := inventoryJSON{
		Model:      run.Model,
		Product:    run.Product,
		Date:       run.Date,
		Fxx:        run.Fxx,
		Source:     inv.Source,
		Provenance: inv.Provenance,
		IndexURL:   inv.IndexURL,
		Records:    make([]recordJSON, 0, len(inv.Records)),
	}
	for _, r := range inv.Records {
		rj := recordJSON{
			Message:  r.Message,
			Start:    r.Start,
			Search:   r.Search,
			Sub:      r.Sub,
			Variable: r.Variable,
			Level:    r.Level,
			Forecast: r.Forecast,
		}
		if !r.Open() {
			end := r.End
			rj.End = &end
		}
		out.Records = append(out.Records, rj)
	}
	if err := json.NewEncoder(stdout).Encode(out); err != nil {
		return fail(stderr, err)
	}
	return 0
}

type latestJSON struct {
	Model   string    `json:"model"`
	Product string    `json:"product"`
	Date    time.Time `json:"date"`
	Fxx     int       `json:"fxx"`
	Source  string    `json:"source"`
	URL     string    `json:"url"`
}

func latestCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ca, err := parseArgs("latest", args, stderr)
	if err != nil {
		return argError(err, stderr)
	}
	e, err := setup(ca, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	ctx = ctxlog.WithLogger(ctx, e.logger)

	opts := e.options()
	if len(ca.Dates) == 1 {
		start := ca.Dates[0]
		opts.Now = func() time.Time { return start }
	}
	h, err := herbie.Latest(ctx, e.cat, herbie.Request{Model: ca.Model, Product: ca.Product, Fxx: ca.Fxx[0]}, opts, ca.MaxBack)
	if err != nil {
		return fail(stderr, err)
	}
	run := h.Run()
	if isTTY(stdout) {
		fmt.Fprintf(stdout, "%s %s via %s\n", run.String(), h.URL(), h.Source())
		return 0
	}
	_ = json.NewEncoder(stdout).Encode(latestJSON{
		Model:   run.Model,
		Product: run.Product,
		Date:    run.Date,
		Fxx:     run.Fxx,
		Source:  h.Source(),
		URL:     h.URL(),
	})
	return 0
}

func netcdfCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ca, err := parseArgs("netcdf", args, stderr)
	if err != nil {
		return argError(err, stderr)
	}
	h, e, code := single(ctx, ca, stderr)
	if h == nil {
		return code
	}
	ctx = ctxlog.WithLogger(ctx, e.logger)

	ds, err := h.XArray(ctx, ca.Search, ca.RemoveGrib)
	if err != nil {
		return fail(stderr, err)
	}
	if err := ds.WriteNetCDF(ca.Out); err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "%s\n", ca.Out)
	fmt.Fprintf(stderr, "variables=%s\n", strings.Join(ds.Names(), ","))
	return 0
}

func modelsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var ca cliArgs
	fs.StringVar(&ca.Config.ConfigPath, "config", "", "配置文件路径")
	if err := fs.Parse(args); err != nil {
		return argError(err, stderr)
	}
	e, err := setup(ca, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	for _, name := range e.cat.Names() {
		m, _ := e.cat.Model(name)
		sources := make([]string, 0, len(m.Sources))
		for _, s := range m.Sources {
			sources = append(sources, s.Name)
		}
		fmt.Fprintf(stdout, "%-8s product=%-6s sources=%s  %s\n", m.Name, m.DefaultProduct, strings.Join(sources, ","), m.Description)
	}
	return 0
}

// single 为 inventory/netcdf 构造单个实例；失败时返回 nil 与退出码。
func single(ctx context.Context, ca cliArgs, stderr io.Writer) (*herbie.Herbie, env, int) {
	e, err := setup(ca, stderr)
	if err != nil {
		return nil, env{}, fail(stderr, err)
	}
	h, err := herbie.New(e.cat, herbie.Request{
		Model:   ca.Model,
		Product: ca.Product,
		Date:    ca.Dates[0],
		Fxx:     ca.Fxx[0],
	}, e.options())
	if err != nil {
		return nil, env{}, fail(stderr, err)
	}
	return h, e, 0
}

func fail(stderr io.Writer, err error) int {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrorCode(err, domain.ErrCodeIOFailed)
	}
	fmt.Fprintf(stderr, "%s: %v\n", code, err)
	return 1
}

func argError(err error, stderr io.Writer) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(stderr, "参数错误：%v\n", err)
	return 2
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  herbie download  --model hrrr --date "2022-01-01 06:00" [--fxx 0-6] [--search ":TMP:2 m"]
  herbie inventory --model hrrr --date "2022-01-01 06:00" [--fxx 0] [--search REGEX]
  herbie latest    --model hrrr [--fxx 0] [--max-back 24]
  herbie netcdf    --model hrrr --date "2022-01-01 06:00" --search REGEX --out x.nc [--remove-grib]
  herbie models

命令：
  download   下载完整文件或字段子集（可批量：多个 --date × --fxx）
  inventory  列出字段目录
  latest     查找最新可用的预报
  netcdf     下载并通过 wgrib2 转换为 NetCDF
  models     列出模式目录

使用 "herbie <命令> --help" 查看详细参数。
`)
}

func emitReport(stdout, stderr io.Writer, rr domain.BatchReport) {
	if isTTY(stdout) {
		fmt.Fprintf(stdout, "完成：processed=%d skipped=%d failed=%d bytes=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Bytes,
		)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", itemKey(it), it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 BatchReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(stderr, "完成：processed=%d skipped=%d failed=%d bytes=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Bytes,
	)
}

func itemKey(it domain.ItemResult) string {
	if it.Model == "" {
		return "<config>"
	}
	return fmt.Sprintf("%s %s f%02d", it.Model, it.Date.Format("2006-01-02T15"), it.Fxx)
}

func reportForConfigError(ca cliArgs, err error) domain.BatchReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.BatchReport{
		SaveDir:    ca.Config.SaveDir,
		Search:     ca.Search,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Attempts:  []domain.SourceAttemptResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
