package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/herbie/internal/app/batch"
	"github.com/John-Robertt/herbie/internal/config"
	"github.com/John-Robertt/herbie/internal/domain"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 是交互终端的简洁进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - keepalive：大文件下载期间长时间无条目完成时，定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	skip    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = total

	fmt.Fprintf(p.w, "[%s] herbie download\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  save_dir: %s\n", eff.SaveDir)
	fmt.Fprintf(p.w, "  priority: %s\n", formatPriority(eff.Priority))
	fmt.Fprintf(p.w, "  overwrite: %s\n", onOff(eff.Overwrite))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  wgrib2: %s\n", eff.Wgrib2)
	if eff.ModelsFile != "" {
		fmt.Fprintf(p.w, "  models_file: %s\n", eff.ModelsFile)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	key := itemKey(res)
	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK source=%s bytes=%s%s (%s)\n",
			idx, total, key, res.Source, formatBytes(res.Bytes), formatFallbackNote(res), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP (已存在) (%s)\n", idx, total, key, formatShortDuration(dur))
	case domain.StatusFailed:
		p.fail++
		chain := formatAttemptChain(res.Attempts, 2)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s%s (%s)\n",
			idx, total, key, res.ErrorCode, truncate(res.ErrorMsg, 160), chain, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, key, strings.ToUpper(res.Status), formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, ok, fail, skip, active int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
		done, total, ok, fail, skip, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := p.workers
					if remain := p.total - p.done; remain < active {
						active = remain
					}
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, active, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatPriority(xs []string) string {
	if len(xs) == 0 {
		return "(声明顺序)"
	}
	return strings.Join(xs, " -> ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// formatFallbackNote 在首选来源失败、改用后续镜像时给出提示。
func formatFallbackNote(res domain.ItemResult) string {
	failed := 0
	for _, a := range res.Attempts {
		if strings.TrimSpace(a.ErrorMsg) != "" {
			failed++
		}
	}
	if failed == 0 {
		return ""
	}
	first := res.Attempts[0]
	return " fallback(" + first.Source + " " + truncate(first.ErrorMsg, 90) + ")"
}

func formatAttemptChain(attempts []domain.SourceAttemptResult, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Source)
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
