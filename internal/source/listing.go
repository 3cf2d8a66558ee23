package source

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/herbie/internal/models"
)

// ListRuns 抓取镜像的目录索引页，返回已发布的运行日期（UTC 零点，新到旧，去重）。
// 链接文本与 href 末段任一命中 listing.Pattern 即计入。
func ListRuns(ctx context.Context, c *http.Client, listing *models.Listing) ([]time.Time, error) {
	if listing == nil {
		return nil, fmt.Errorf("listing 不能为空")
	}
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listing.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: listing.URL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	seen := map[time.Time]struct{}{}
	var out []time.Time
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		for _, name := range []string{lastSegment(href), strings.TrimSpace(s.Text())} {
			m := listing.Pattern.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			d, err := time.Parse("20060102", m[1])
			if err != nil {
				continue
			}
			if _, dup := seen[d]; !dup {
				seen[d] = struct{}{}
				out = append(out, d)
			}
			return
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

func lastSegment(href string) string {
	h := strings.TrimSpace(href)
	if i := strings.IndexAny(h, "?#"); i >= 0 {
		h = h[:i]
	}
	trimmed := strings.TrimSuffix(h, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return h[i+1:]
	}
	return h
}
