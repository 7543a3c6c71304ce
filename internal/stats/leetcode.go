package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const leetcodeQuery = `
query userSessionProgress($username: String!) {
    matchedUser(username: $username) {
        submissionCalendar
        submitStats {
            acSubmissionNum {
                difficulty
                count
            }
        }
    }
}`

// LeetCodeStats is the per-handle result: the accepted-problem total plus
// the submission calendar (unix day timestamp -> submission count).
type LeetCodeStats struct {
	TotalSolved        int            `json:"totalSolved"`
	SubmissionCalendar map[string]int `json:"submissionCalendar"`
}

func (c *Client) LeetCode(ctx context.Context, handle string) (*LeetCodeStats, error) {
	body, _ := json.Marshal(map[string]any{
		"query":     leetcodeQuery,
		"variables": map[string]string{"username": handle},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.LeetCodeURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("leetcode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leetcode: status %d", resp.StatusCode)
	}

	var out struct {
		Errors []any `json:"errors"`
		Data   struct {
			MatchedUser *struct {
				SubmissionCalendar string `json:"submissionCalendar"`
				SubmitStats        struct {
					AcSubmissionNum []struct {
						Difficulty string `json:"difficulty"`
						Count      int    `json:"count"`
					} `json:"acSubmissionNum"`
				} `json:"submitStats"`
			} `json:"matchedUser"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("leetcode: decode: %w", err)
	}
	if len(out.Errors) > 0 || out.Data.MatchedUser == nil {
		return nil, ErrNotFound
	}

	st := &LeetCodeStats{SubmissionCalendar: map[string]int{}}
	for _, n := range out.Data.MatchedUser.SubmitStats.AcSubmissionNum {
		if n.Difficulty == "All" {
			st.TotalSolved = n.Count
		}
	}
	// The calendar arrives as a JSON object encoded into a string.
	if cal := out.Data.MatchedUser.SubmissionCalendar; cal != "" {
		if err := json.Unmarshal([]byte(cal), &st.SubmissionCalendar); err != nil {
			return nil, fmt.Errorf("leetcode: calendar: %w", err)
		}
	}
	return st, nil
}
