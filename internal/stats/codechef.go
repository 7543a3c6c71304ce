package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CodeChef has no official public API; this uses a community profile
// scraper. The caller falls back to the account's cached value when the
// upstream is unavailable.
func (c *Client) CodeChef(ctx context.Context, handle string) (int, error) {
	u := c.CodeChefURL + "/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("codechef: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("codechef: status %d", resp.StatusCode)
	}

	var out struct {
		Success        bool `json:"success"`
		ProblemsSolved int  `json:"problemsSolved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("codechef: decode: %w", err)
	}
	if !out.Success {
		return 0, ErrNotFound
	}
	return out.ProblemsSolved, nil
}
