package herbie

import (
	"context"
	"time"

	"github.com/John-Robertt/herbie/internal/ctxlog"
	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
	"github.com/John-Robertt/herbie/internal/source"
)

// Latest 从当前整点开始逐小时回退（最多 maxBack 小时），返回第一个来源可解析的实例。
// req.Date/DateString 被忽略。模式声明了 listing 时，先抓取目录索引，跳过未发布的日期；
// 索引抓取失败只记日志，不影响回退。
func Latest(ctx context.Context, cat *models.Catalog, req Request, opts Options, maxBack int) (*Herbie, error) {
	logger := ctxlog.FromContext(ctx)
	m, err := cat.Model(req.Model)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if maxBack < 0 {
		maxBack = 0
	}

	var published map[string]struct{}
	if m.Listing != nil {
		dates, err := source.ListRuns(ctx, opts.MetaClient, m.Listing)
		if err != nil {
			logger.Warn("run listing unavailable", "model", m.Name, "url", m.Listing.URL, "error", err)
		} else {
			published = make(map[string]struct{}, len(dates))
			for _, d := range dates {
				published[d.Format("20060102")] = struct{}{}
			}
		}
	}

	start := now().UTC().Truncate(time.Hour)
	var (
		lastRun  domain.ModelRun
		attempts []domain.SourceAttempt
	)
	for i := 0; i <= maxBack; i++ {
		t := start.Add(-time.Duration(i) * time.Hour)
		if published != nil {
			if _, ok := published[t.Format("20060102")]; !ok {
				continue
			}
		}

		r := req
		r.Date, r.DateString = t, ""
		h, err := New(cat, r, opts)
		if err != nil {
			return nil, err
		}
		lastRun = h.Run()
		if _, err := h.Resolve(ctx); err == nil {
			logger.Debug("latest run found", "run", h.Run().String(), "source", h.Source())
			return h, nil
		} else if !domain.IsSourceNotFound(err) {
			return nil, err
		}
		attempts = append(attempts, h.Attempts()...)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, &domain.SourceNotFoundError{Run: lastRun, Attempts: attempts}
}
