package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const cfFeed = `{"status":"OK","result":[
	{"verdict":"OK","problem":{"contestId":1,"index":"A"}},
	{"verdict":"OK","problem":{"contestId":1,"index":"A"}},
	{"verdict":"WRONG_ANSWER","problem":{"contestId":1,"index":"B"}},
	{"verdict":"OK","problem":{"contestId":2,"index":"C"}}
]}`

func TestCodeforcesStatsRecordsOwnerHandle(t *testing.T) {
	e := newTestEnv(t)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(cfFeed))
	}))
	defer up.Close()
	e.Handler.Stats.CodeforcesURL = up.URL

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)

	// The default codeforces handle for a@x.com is the local-part.
	w = e.do("GET", "/api/stats/codeforces/a", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		TotalSolved int `json:"totalSolved"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.TotalSolved != 2 {
		t.Fatalf("totalSolved = %d, want 2 unique problems", out.TotalSolved)
	}

	u, _ := e.Store.FindUserByEmail(nil, "a@x.com")
	if u.Stats["codeforces"] != 2 {
		t.Fatalf("owner stat not recorded: %v", u.Stats)
	}
}

func TestCodeforcesStatsSkipsForeignHandle(t *testing.T) {
	e := newTestEnv(t)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(cfFeed))
	}))
	defer up.Close()
	e.Handler.Stats.CodeforcesURL = up.URL

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)

	if w := e.do("GET", "/api/stats/codeforces/tourist", "", ck); w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	u, _ := e.Store.FindUserByEmail(nil, "a@x.com")
	if _, ok := u.Stats["codeforces"]; ok {
		t.Fatalf("foreign handle recorded onto the account: %v", u.Stats)
	}
}

func TestStatsUnknownHandle(t *testing.T) {
	e := newTestEnv(t)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"FAILED","comment":"handle: User not found"}`))
	}))
	defer up.Close()
	e.Handler.Stats.CodeforcesURL = up.URL

	if w := e.do("GET", "/api/stats/codeforces/nobody", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown handle: %d %s", w.Code, w.Body.String())
	}
}

func TestStatsFallsBackToStoredCount(t *testing.T) {
	e := newTestEnv(t)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	up.Close() // upstream is down
	e.Handler.Stats.CodeforcesURL = up.URL

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)
	u, _ := e.Store.FindUserByEmail(nil, "a@x.com")
	e.Store.UpdateStat(nil, u.ID.Hex(), "codeforces", 17)

	w = e.do("GET", "/api/stats/codeforces/a", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("fallback: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		TotalSolved int  `json:"totalSolved"`
		Cached      bool `json:"cached"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Cached || out.TotalSolved != 17 {
		t.Fatalf("fallback body: %s", w.Body.String())
	}

	// Anonymous requests have nothing to fall back on.
	w = e.do("GET", "/api/stats/codeforces/a", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("anonymous fallback: %d", w.Code)
	}
}
