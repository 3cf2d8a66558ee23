// Package herbie 是单次预报（model, product, date, fxx）的下载入口：
// 解析来源、获取字段目录、按字段子集下载，并把结果落到确定性的缓存路径。
//
// 单个实例只能串行使用；批量并发请为每个任务创建独立实例。
package herbie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/fetch"
	"github.com/John-Robertt/herbie/internal/grid"
	"github.com/John-Robertt/herbie/internal/index"
	"github.com/John-Robertt/herbie/internal/infra/cache"
	"github.com/John-Robertt/herbie/internal/infra/fsx"
	"github.com/John-Robertt/herbie/internal/inventory"
	"github.com/John-Robertt/herbie/internal/models"
	"github.com/John-Robertt/herbie/internal/source"
)

// Request 描述一次预报。Date 与 DateString 二选一；DateString 走 domain.ParseRunTime。
type Request struct {
	Model      string
	Product    string
	Date       time.Time
	DateString string
	Fxx        int
}

// Options 是实例级策略与外部协作者。nil 的 client 使用 http.DefaultClient。
type Options struct {
	SaveDir   string
	Priority  []string
	Overwrite bool

	// MetaClient 用于 HEAD 探测与 idx 下载；DataClient 用于 GRIB 下载。
	MetaClient *http.Client
	DataClient *http.Client

	// Generator 在没有远端 idx 时从本地完整文件生成目录；nil 表示不可生成。
	Generator index.Generator
	// Decoder 供 XArray 使用。
	Decoder grid.Decoder

	// Now 仅供 Latest 使用；nil 时为 time.Now。
	Now func() time.Time
}

// DownloadOptions 是单次下载的选项。Overwrite 与实例级 Overwrite 取或。
type DownloadOptions struct {
	Overwrite bool
	Verbose   bool
}

// Herbie 是单次预报的下载句柄。
type Herbie struct {
	run      domain.ModelRun
	model    *models.Model
	store    cache.Store
	opts     Options
	basename string

	life lifecycle
}

// New 校验请求并构造实例；不访问网络。
func New(cat *models.Catalog, req Request, opts Options) (*Herbie, error) {
	if cat == nil {
		return nil, errors.New("catalog 不能为空")
	}
	date := req.Date
	if s := strings.TrimSpace(req.DateString); s != "" {
		if !date.IsZero() {
			return nil, errors.New("Date 与 DateString 只能设置一个")
		}
		t, err := domain.ParseRunTime(s)
		if err != nil {
			return nil, err
		}
		date = t
	}

	m, err := cat.Model(req.Model)
	if err != nil {
		return nil, err
	}
	product, err := m.Product(req.Product)
	if err != nil {
		return nil, err
	}
	run, err := domain.NewModelRun(m.Name, product, date, req.Fxx)
	if err != nil {
		return nil, err
	}
	basename, err := m.Basename(run)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.SaveDir) == "" {
		return nil, errors.New("SaveDir 不能为空")
	}

	return &Herbie{
		run:      run,
		model:    m,
		store:    cache.New(opts.SaveDir),
		opts:     opts,
		basename: basename,
	}, nil
}

func (h *Herbie) Run() domain.ModelRun { return h.run }

func (h *Herbie) State() State { return h.life.state }

// Attempts 返回最近一次来源探测的轨迹。
func (h *Herbie) Attempts() []domain.SourceAttempt { return h.life.attempts }

// Source 返回当前来源名；未解析时为空。
func (h *Herbie) Source() string {
	if h.life.local {
		return source.Local
	}
	if h.life.resolved == nil {
		return ""
	}
	return h.life.resolved.Source
}

// URL 返回已解析来源的地址；未解析时为空。
func (h *Herbie) URL() string {
	if h.life.resolved == nil {
		return ""
	}
	return h.life.resolved.URL
}

// Provenance 返回当前目录的来源；目录尚未获取时为空。
func (h *Herbie) Provenance() domain.Provenance {
	if h.life.inv == nil {
		return ""
	}
	return h.life.inv.Provenance
}

// LocalFilePath 返回 pattern 对应的缓存路径；pattern 为空表示完整文件。不访问网络。
func (h *Herbie) LocalFilePath(pattern string) string {
	return h.store.PathFor(h.run, h.basename, pattern)
}

// Invalidate 丢弃缓存的状态，见 Scope。
func (h *Herbie) Invalidate(scope Scope) {
	h.life.invalidate(scope)
}

// Resolve 返回提供该文件的来源；结果在实例内缓存。
func (h *Herbie) Resolve(ctx context.Context) (source.Resolved, error) {
	if h.life.resolved != nil {
		return *h.life.resolved, nil
	}
	if h.life.local {
		full := h.LocalFilePath("")
		size, ok, err := fsx.StatFile(full)
		if err != nil {
			return source.Resolved{}, err
		}
		if !ok {
			attempts := []domain.SourceAttempt{{Source: source.Local, URL: full, Err: os.ErrNotExist}}
			h.life.attempts = attempts
			return source.Resolved{}, &domain.SourceNotFoundError{Run: h.run, Attempts: attempts}
		}
		r := source.Resolved{Source: source.Local, URL: full, ContentLength: size}
		h.life.setResolved(r, []domain.SourceAttempt{{Source: source.Local, URL: full}})
		return r, nil
	}

	cands, err := h.model.Candidates(h.run, h.opts.Priority)
	if err != nil {
		return source.Resolved{}, err
	}
	r, attempts, err := source.Resolve(ctx, h.opts.MetaClient, h.run, cands)
	h.life.attempts = attempts
	if err != nil {
		return source.Resolved{}, err
	}
	h.life.setResolved(r, attempts)
	return r, nil
}

// Inventory 返回字段目录；pattern 为空时返回全部记录，否则只返回命中的记录。
func (h *Herbie) Inventory(ctx context.Context, pattern string) (domain.Inventory, error) {
	inv, err := h.inventory(ctx)
	if err != nil {
		return domain.Inventory{}, err
	}
	recs, err := inventory.Filter(inv, pattern)
	if err != nil {
		return domain.Inventory{}, err
	}
	out := inv
	out.Records = recs
	return out, nil
}

func (h *Herbie) inventory(ctx context.Context) (domain.Inventory, error) {
	if h.life.inv != nil {
		return *h.life.inv, nil
	}
	logger := ctxlog.FromContext(ctx)

	r, err := h.Resolve(ctx)
	if err != nil {
		return domain.Inventory{}, err
	}

	if !h.life.forceGenerate && r.Source != source.Local {
		raw, u, err := index.Fetcher{Client: h.opts.MetaClient}.Fetch(ctx, r.URL, h.model)
		switch {
		case err == nil:
			recs, perr := inventory.Parse(raw, h.model.IdxStyle)
			if perr == nil {
				inv := domain.Inventory{Records: recs, Provenance: domain.ProvenanceRemote, Source: r.Source, IndexURL: u}
				h.life.setInventory(inv)
				return inv, nil
			}
			logger.Warn("remote index unreadable, generating locally", "run", h.run.String(), "url", u, "error", perr)
		case errors.Is(err, domain.ErrIndexNotFound):
			logger.Info("remote index not found, generating locally", "run", h.run.String(), "source", r.Source)
		default:
			return domain.Inventory{}, err
		}
	}

	inv, err := h.generate(ctx, r)
	if err != nil {
		return domain.Inventory{}, err
	}
	h.life.setInventory(inv)
	return inv, nil
}

// generate 从本地完整文件生成目录；本地没有完整文件时先下载。
// 非强制模式下优先复用已持久化的 idx。
func (h *Herbie) generate(ctx context.Context, r source.Resolved) (domain.Inventory, error) {
	full := h.LocalFilePath("")
	idxPath := h.store.IndexPath(full)

	if !h.life.forceGenerate {
		if raw, err := os.ReadFile(idxPath); err == nil {
			recs, err := inventory.Parse(raw, models.StyleWgrib2)
			if err == nil {
				return domain.Inventory{Records: recs, Provenance: domain.ProvenanceGenerated, Source: r.Source, IndexURL: idxPath}, nil
			}
		}
	}

	ok, err := h.store.Exists(full)
	if err != nil {
		return domain.Inventory{}, err
	}
	if !ok {
		if r.Source == source.Local {
			return domain.Inventory{}, &domain.IndexUnavailableError{Path: full, Err: os.ErrNotExist}
		}
		if _, err := (fetch.Downloader{Client: h.opts.DataClient}).Full(ctx, r.URL, full); err != nil {
			return domain.Inventory{}, err
		}
		if err := h.store.Remove(idxPath); err != nil {
			return domain.Inventory{}, err
		}
	}

	gen := h.opts.Generator
	if gen == nil {
		gen = index.Unavailable
	}
	raw, err := gen(ctx, full)
	if err != nil {
		return domain.Inventory{}, err
	}
	recs, err := inventory.Parse(raw, models.StyleWgrib2)
	if err != nil {
		return domain.Inventory{}, err
	}
	if err := fsx.WriteFileAtomic(filepath.Dir(idxPath), filepath.Base(idxPath), raw); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to persist generated index", "path", idxPath, "error", err)
	}
	return domain.Inventory{Records: recs, Provenance: domain.ProvenanceGenerated, Source: r.Source, IndexURL: idxPath}, nil
}

// Download 把 pattern 选中的字段（空 pattern 为完整文件）写入 LocalFilePath(pattern)。
// 目标已存在且不覆盖时不访问网络。
func (h *Herbie) Download(ctx context.Context, pattern string, o DownloadOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)
	dst := h.LocalFilePath(pattern)
	overwrite := h.opts.Overwrite || o.Overwrite

	exists, err := h.store.Exists(dst)
	if err != nil {
		return "", err
	}
	if exists && !overwrite {
		logger.Debug("already cached", "path", dst)
		h.life.advance(StateDownloaded)
		return dst, nil
	}

	dl := fetch.Downloader{Client: h.opts.DataClient, Verbose: o.Verbose}

	if pattern == "" {
		r, err := h.Resolve(ctx)
		if err != nil {
			return "", err
		}
		if r.Source != source.Local {
			if _, err := dl.Full(ctx, r.URL, dst); err != nil {
				return "", err
			}
			// 完整文件已替换，先前生成的 idx 偏移不再可信。
			if err := h.store.Remove(h.store.IndexPath(dst)); err != nil {
				return "", err
			}
		}
		h.life.advance(StateDownloaded)
		return dst, nil
	}

	inv, err := h.inventory(ctx)
	if err != nil {
		return "", err
	}
	recs, err := inventory.Match(inv, pattern)
	if err != nil {
		return "", err
	}
	ranges := inventory.Coalesce(recs)

	src, total, err := h.rangeSource(overwrite)
	if err != nil {
		return "", err
	}
	n, err := dl.Ranges(ctx, src, ranges, total, dst)
	if err != nil {
		return "", err
	}
	logger.Debug("subset downloaded", "path", dst, "records", len(recs), "ranges", len(ranges), "bytes", n)
	h.life.advance(StateDownloaded)
	return dst, nil
}

// rangeSource 优先从本地完整文件截取；否则走远端 Range 请求。
// overwrite 时只要有远端来源就不读本地完整文件。
func (h *Herbie) rangeSource(overwrite bool) (fetch.RangeSource, int64, error) {
	full := h.LocalFilePath("")
	remote := h.life.resolved != nil && h.life.resolved.Source != source.Local
	if !overwrite || !remote {
		size, ok, err := fsx.StatFile(full)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			return fetch.FileSource{Path: full}, size, nil
		}
	}
	if !remote {
		return nil, 0, &domain.IndexUnavailableError{Path: full, Err: os.ErrNotExist}
	}
	r := h.life.resolved
	return fetch.HTTPSource{Client: h.opts.DataClient, URL: r.URL}, r.ContentLength, nil
}

// XArray 下载后交给 Decoder 解码。removeGrib 为 true 且文件是本次调用新下载的，
// 解码成功后删除该文件；调用前已存在的文件永远不删。
func (h *Herbie) XArray(ctx context.Context, pattern string, removeGrib bool) (*grid.Dataset, error) {
	if h.opts.Decoder == nil {
		return nil, fmt.Errorf("未配置 GRIB 解码器")
	}
	path := h.LocalFilePath(pattern)
	existed, err := h.store.Exists(path)
	if err != nil {
		return nil, err
	}

	if _, err := h.Download(ctx, pattern, DownloadOptions{}); err != nil {
		return nil, err
	}
	ds, err := h.opts.Decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	if removeGrib && !existed {
		if err := h.store.Remove(path); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
