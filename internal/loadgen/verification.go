package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// verify reads back every tag and subject and lists the counters that do
// not match the plan. Only meaningful when all requests succeeded.
func verify(ctx context.Context, c *client, cfg *Config, p *plan) []string {
	var out []string
	for _, uid := range p.tags {
		var tag struct {
			ScanCount int64 `json:"scanCount"`
			History   []any `json:"history"`
		}
		if err := c.do(ctx, http.MethodGet, "/tags/"+uid, nil, &tag, http.StatusOK); err != nil {
			out = append(out, fmt.Sprintf("tag %s: %v", uid, err))
			continue
		}
		want := int64(cfg.ScansPerTag)
		if tag.ScanCount != want || int64(len(tag.History)) != want {
			out = append(out, fmt.Sprintf("tag %s: scanCount=%d history=%d want %d", uid, tag.ScanCount, len(tag.History), want))
		}
	}

	users := make([]string, 0, len(p.expect))
	for u := range p.expect {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		exp := p.expect[u]
		var st struct {
			PageViews   int64 `json:"pageViews"`
			TotalClicks int64 `json:"totalClicks"`
		}
		if err := c.do(ctx, http.MethodGet, "/engagement/"+u, nil, &st, http.StatusOK); err != nil {
			out = append(out, fmt.Sprintf("stats %s: %v", u, err))
			continue
		}
		if st.PageViews != exp.pageViews || st.TotalClicks != exp.totalClicks {
			out = append(out, fmt.Sprintf("stats %s: pageViews=%d totalClicks=%d want %d/%d",
				u, st.PageViews, st.TotalClicks, exp.pageViews, exp.totalClicks))
		}
	}
	return out
}
