package inventory

import (
	"fmt"
	"regexp"

	"github.com/John-Robertt/herbie/internal/domain"
)

// Match 返回 Search（或任一 Sub）命中 pattern 的记录，保持目录顺序。
//
// - pattern 为空：返回一条覆盖整个文件的合成记录 [0, OpenEnd)
// - 目录为空且 pattern 非空：domain.ErrEmptyInventory
// - 零命中：*domain.NoMatchError
func Match(inv domain.Inventory, pattern string) ([]domain.Record, error) {
	if pattern == "" {
		return []domain.Record{{Message: "all", Start: 0, End: domain.OpenEnd}}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern 非法：%w", err)
	}
	if len(inv.Records) == 0 {
		return nil, domain.ErrEmptyInventory
	}

	var out []domain.Record
	for _, r := range inv.Records {
		if matches(re, r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, &domain.NoMatchError{Pattern: pattern, Total: len(inv.Records)}
	}
	return out, nil
}

// Filter 与 Match 相同，但 pattern 为空时返回全部记录（用于展示目录）。
func Filter(inv domain.Inventory, pattern string) ([]domain.Record, error) {
	if pattern == "" {
		return inv.Records, nil
	}
	return Match(inv, pattern)
}

func matches(re *regexp.Regexp, r domain.Record) bool {
	if re.MatchString(r.Search) {
		return true
	}
	for _, s := range r.Sub {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
