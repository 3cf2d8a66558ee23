// Package batch 并发处理多个预报（模式 × 日期 × 预报时效），每个任务持有独立的 Herbie 实例。
package batch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/John-Robertt/herbie/internal/config"
	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/herbie"
	"github.com/John-Robertt/herbie/internal/index"
	"github.com/John-Robertt/herbie/internal/infra/fsx"
	"github.com/John-Robertt/herbie/internal/infra/httpx"
	"github.com/John-Robertt/herbie/internal/models"
)

// Job 是一个待处理的预报。
type Job struct {
	Model   string
	Product string
	Date    time.Time
	Fxx     int
}

// Jobs 展开 dates × fxxs 的笛卡尔积，顺序为日期优先。
func Jobs(model, product string, dates []time.Time, fxxs []int) []Job {
	out := make([]Job, 0, len(dates)*len(fxxs))
	for _, d := range dates {
		for _, f := range fxxs {
			out = append(out, Job{Model: model, Product: product, Date: d, Fxx: f})
		}
	}
	return out
}

// Deps 是批量运行的外部协作者。nil 的 client 由 httpx 按配置构造。
type Deps struct {
	Catalog    *models.Catalog
	Generator  index.Generator
	MetaClient *http.Client
	DataClient *http.Client

	// Verbose 把下载进度日志提升到 info。
	Verbose bool
}

// Execute 下载 jobs 中每个预报的 search 子集（空 search 为完整文件），返回对外稳定的 BatchReport。
// 单个任务失败只影响该条目。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, search string, jobs []Job) domain.BatchReport {
	return ExecuteWithObserver(ctx, eff, deps, search, jobs, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, search string, jobs []Job, obs Observer) domain.BatchReport {
	started := time.Now().UTC()
	if obs != nil {
		obs.OnStart(eff, len(jobs))
	}

	rr := domain.BatchReport{
		SaveDir:   eff.SaveDir,
		Search:    search,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, len(jobs)),
	}

	if deps.Catalog == nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, "未加载模式目录"))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	if deps.MetaClient == nil {
		c, err := httpx.NewMetaClient(eff.ProxyURL)
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return rr
		}
		deps.MetaClient = c
	}
	if deps.DataClient == nil {
		c, err := httpx.NewDataClient(eff.ProxyURL)
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return rr
		}
		deps.DataClient = c
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(jobs),
		}, 0)
	}

	type execResult struct {
		res domain.ItemResult
		dur time.Duration
	}

	in := make(chan Job)
	results := make(chan execResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range in {
				oneStarted := time.Now()
				r := execOne(ctx, eff, deps, search, j)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			in <- j
		}
		close(in)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(jobs), it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func execOne(ctx context.Context, eff config.EffectiveConfig, deps Deps, search string, j Job) domain.ItemResult {
	logger := ctxlog.FromContext(ctx)
	res := domain.ItemResult{
		Model:    j.Model,
		Product:  j.Product,
		Date:     j.Date,
		Fxx:      j.Fxx,
		Attempts: []domain.SourceAttemptResult{},
	}

	h, err := herbie.New(deps.Catalog, herbie.Request{Model: j.Model, Product: j.Product, Date: j.Date, Fxx: j.Fxx}, herbie.Options{
		SaveDir:    eff.SaveDir,
		Priority:   eff.Priority,
		Overwrite:  eff.Overwrite,
		MetaClient: deps.MetaClient,
		DataClient: deps.DataClient,
		Generator:  deps.Generator,
	})
	if err != nil {
		return failed(res, err)
	}
	run := h.Run()
	res.Model, res.Product, res.Date = run.Model, run.Product, run.Date

	path := h.LocalFilePath(search)
	res.Path = path
	size, existed, err := fsx.StatFile(path)
	if err != nil {
		return failed(res, err)
	}
	if existed && !eff.Overwrite {
		res.Status = domain.StatusSkipped
		res.Bytes = size
		return res
	}

	_, err = h.Download(ctx, search, herbie.DownloadOptions{Verbose: deps.Verbose})
	res.Source = h.Source()
	res.URL = h.URL()
	res.Provenance = h.Provenance()
	res.Attempts = domain.AttemptResults(h.Attempts())
	if err != nil {
		logger.Debug("batch item failed", "run", run.String(), "error", err)
		return failed(res, err)
	}

	size, _, err = fsx.StatFile(path)
	if err != nil {
		return failed(res, err)
	}
	res.Status = domain.StatusProcessed
	res.Bytes = size
	return res
}

func failed(res domain.ItemResult, err error) domain.ItemResult {
	res.Status = domain.StatusFailed
	res.ErrorCode = domain.ErrorCode(err, domain.ErrCodeIOFailed)
	res.ErrorMsg = err.Error()
	return res
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.SourceAttemptResult{},
	}
}
