package cache

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/infra/fsx"
)

// Store 把 ModelRun 映射为 <root>/<model>/<YYYYMMDD>/ 下的确定性路径。
//
// 约束：
// - 同一 (run, basename, pattern) 永远得到同一路径
// - 完整文件与子集文件永不共享路径
// - “文件存在”是唯一的缓存命中信号
type Store struct {
	Root string
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

// Dir 返回 run 对应的日期目录。
func (s Store) Dir(run domain.ModelRun) string {
	return filepath.Join(s.Root, run.Model, run.Date.UTC().Format("20060102"))
}

// PathFor 返回 run 的本地路径；pattern 非空时为子集文件。
func (s Store) PathFor(run domain.ModelRun, basename, pattern string) string {
	name := filepath.Base(basename)
	if pattern != "" {
		name = SubsetName(pattern, name)
	}
	return filepath.Join(s.Dir(run), name)
}

// SubsetName 返回 "subset_<hash>__<basename>"，hash 为 pattern 的 4 字节 blake2b。
func SubsetName(pattern, basename string) string {
	return "subset_" + Signature(pattern) + "__" + basename
}

// Signature 返回 pattern 的 8 位十六进制摘要。
func Signature(pattern string) string {
	h, err := blake2b.New(4, nil)
	if err != nil {
		// size=4 且无 key 时不会失败。
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	_, _ = h.Write([]byte(pattern))
	return hex.EncodeToString(h.Sum(nil))
}

// Exists 判断缓存文件是否存在；路径被目录占用时返回 PathTypeConflictError。
func (s Store) Exists(path string) (bool, error) {
	_, ok, err := fsx.StatFile(path)
	return ok, err
}

// Size 返回缓存文件大小；不存在时 ok=false。
func (s Store) Size(path string) (int64, bool, error) {
	return fsx.StatFile(path)
}

func (s Store) Remove(path string) error {
	return fsx.RemoveBestEffort(path)
}

// IndexPath 返回本地生成 idx 的持久化路径（与 GRIB 同目录）。
func (s Store) IndexPath(path string) string {
	return path + ".idx"
}
