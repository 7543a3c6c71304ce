// Package stats fetches solved-problem counts from the public APIs of the
// tracked competitive-programming platforms. Every call is bounded by the
// shared client timeout and fails closed; callers decide whether a cached
// value substitutes for a failed fetch.
package stats

import (
	"errors"
	"net/http"
	"time"
)

const (
	leetcodeURL   = "https://leetcode.com/graphql"
	codeforcesURL = "https://codeforces.com/api"
	codechefURL   = "https://codechef-api.vercel.app/handle"
)

// ErrNotFound means the platform answered but knows no such handle.
var ErrNotFound = errors.New("handle not found")

type Client struct {
	// Base URLs, overridable for tests.
	LeetCodeURL   string
	CodeforcesURL string
	CodeChefURL   string

	httpc *http.Client
}

func NewClient() *Client {
	return &Client{
		LeetCodeURL:   leetcodeURL,
		CodeforcesURL: codeforcesURL,
		CodeChefURL:   codechefURL,
		httpc:         &http.Client{Timeout: 5 * time.Second},
	}
}
