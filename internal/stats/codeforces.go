package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Codeforces counts unique solved problems from the submission feed: a
// problem is solved once regardless of how many accepted submissions it
// has. Identity is contestId-index.
func (c *Client) Codeforces(ctx context.Context, handle string) (int, error) {
	u := fmt.Sprintf("%s/user.status?handle=%s&from=1&count=1000", c.CodeforcesURL, url.QueryEscape(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("codeforces: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
		Result []struct {
			Verdict string `json:"verdict"`
			Problem struct {
				ContestID int    `json:"contestId"`
				Index     string `json:"index"`
			} `json:"problem"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("codeforces: decode: %w", err)
	}
	if out.Status != "OK" {
		// Codeforces reports unknown handles as status FAILED with a 400.
		return 0, ErrNotFound
	}

	solved := map[string]struct{}{}
	for _, sub := range out.Result {
		if sub.Verdict == "OK" {
			solved[fmt.Sprintf("%d-%s", sub.Problem.ContestID, sub.Problem.Index)] = struct{}{}
		}
	}
	return len(solved), nil
}
