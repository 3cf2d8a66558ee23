package batch

import (
	"time"

	"github.com/John-Robertt/herbie/internal/config"
	"github.com/John-Robertt/herbie/internal/domain"
)

// Observer 把批量运行的进度事件从执行流程中解耦出来。
//
// 约束：
// - batch 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig, total int)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个任务处理完成时调用。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；batch 层不强制调用）。
	OnProgress(done, total, ok, fail, skip, active int, elapsed time.Duration)
}
