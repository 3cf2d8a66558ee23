package domain

import "time"

// OpenEnd 表示记录的结束偏移未知（最后一条记录，延伸到文件末尾）。
const OpenEnd int64 = -1

// Provenance 标记 Inventory 的来源。
type Provenance string

const (
	ProvenanceRemote    Provenance = "remote"
	ProvenanceGenerated Provenance = "generated"
)

// Record 描述 GRIB 文件内连续存放的一个字段（一条 GRIB message）。
//
// 约束：
// - [Start, End) 为半开区间；End == OpenEnd 时表示“到文件末尾”
// - Search 是不透明的描述文本，只用于正则匹配
// - Sub 是与本记录共享同一字节区间的子 message 描述（例如 UGRD/VGRD 成对存放）
type Record struct {
	Message string
	Start   int64
	End     int64

	Search string
	Sub    []string

	ReferenceTime time.Time
	Variable      string
	Level         string
	Forecast      string
}

// Open 报告记录是否没有已知的结束偏移。
func (r Record) Open() bool { return r.End == OpenEnd }

// Length 返回记录长度；open-ended 记录需要 total（远端文件总长）才能确定。
func (r Record) Length(total int64) (int64, bool) {
	if !r.Open() {
		return r.End - r.Start, true
	}
	if total < 0 {
		return 0, false
	}
	return total - r.Start, true
}

// Inventory 是某次预报在某个来源上的字段目录（按 Start 升序）。
type Inventory struct {
	Records    []Record
	Provenance Provenance
	Source     string
	// IndexURL 记录 idx 的来源（远端 URL 或本地生成时的 grib 路径）。
	IndexURL string
}

// Len 返回记录数。
func (inv Inventory) Len() int { return len(inv.Records) }

// Generated 报告 Inventory 是否为本地生成。
func (inv Inventory) Generated() bool { return inv.Provenance == ProvenanceGenerated }
