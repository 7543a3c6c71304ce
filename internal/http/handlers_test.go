package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comptracker/comptracker-api/internal/oauth"
	"github.com/comptracker/comptracker-api/internal/security"
)

type userBody struct {
	User *struct {
		ID      string            `json:"id"`
		Email   string            `json:"email"`
		Name    string            `json:"name"`
		Kind    string            `json:"type"`
		Handles map[string]string `json:"api_handles"`
		Stats   map[string]int    `json:"stats"`
	} `json:"user"`
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) userBody {
	t.Helper()
	var out userBody
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

// sessionCookie pulls the freshly set session cookie out of a response.
func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response: %v", w.Result().Cookies())
	return nil
}

func cookieCleared(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" && c.Value == "" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestRegisterLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"A@X.com","password":"correcthorse","name":"Alice"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	reg := decodeUser(t, w)
	if reg.User == nil || reg.User.Email != "a@x.com" {
		t.Fatalf("register body: %s", w.Body.String())
	}
	if reg.User.Handles["leetcode"] != "a" {
		t.Fatalf("default handle = %q, want email local-part", reg.User.Handles["leetcode"])
	}
	if reg.User.Kind != "local" {
		t.Fatalf("type = %q", reg.User.Kind)
	}

	// The fresh cookie resolves to the same account.
	w = e.do("GET", "/api/auth/me", "", sessionCookie(t, w))
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	if me := decodeUser(t, w); me.User == nil || me.User.ID != reg.User.ID {
		t.Fatalf("me body: %s", w.Body.String())
	}

	w = e.do("POST", "/api/auth/login", `{"email":"a@x.com","password":"correcthorse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	if in := decodeUser(t, w); in.User == nil || in.User.ID != reg.User.ID {
		t.Fatalf("login resolved a different account: %s", w.Body.String())
	}

	w = e.do("POST", "/api/auth/login", `{"email":"a@x.com","password":"wrong-password"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad password: %d", w.Code)
	}
}

func TestRegisterRejectsDuplicateAndWeakInput(t *testing.T) {
	e := newTestEnv(t)

	if w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	if w := e.do("POST", "/api/auth/register", `{"email":"A@x.com","password":"otherpassword"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email: %d", w.Code)
	}
	if w := e.do("POST", "/api/auth/register", `{"email":"b@x.com","password":"short"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: %d", w.Code)
	}
	if w := e.do("POST", "/api/auth/register", `{"email":"not-an-email","password":"correcthorse"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad email: %d", w.Code)
	}
	if got := e.Store.count(); got != 1 {
		t.Fatalf("stored accounts = %d, want 1", got)
	}
}

func TestGoogleLoginIdempotent(t *testing.T) {
	e := newTestEnv(t)
	e.Google.id = &oauth.Identity{Email: "g@x.com", Name: "Gee", SubjectID: "sub-1"}

	w := e.do("POST", "/api/auth/google", `{"token":"id-token"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first google login: %d %s", w.Code, w.Body.String())
	}
	first := decodeUser(t, w)

	w = e.do("POST", "/api/auth/google", `{"token":"id-token"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second google login: %d", w.Code)
	}
	second := decodeUser(t, w)

	if first.User.ID != second.User.ID {
		t.Fatalf("repeat login split the account: %s vs %s", first.User.ID, second.User.ID)
	}
	if e.Store.count() != 1 {
		t.Fatalf("stored accounts = %d, want 1", e.Store.count())
	}
	if e.Google.calls != 2 {
		t.Fatalf("exchange calls = %d", e.Google.calls)
	}
}

func TestGitHubLinksExistingLocalAccount(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"dev@x.com","password":"correcthorse","name":"Dev"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}
	local := decodeUser(t, w)

	e.GitHub.id = &oauth.Identity{Email: "dev@x.com", Name: "Dev GH", SubjectID: "42"}
	w = e.do("POST", "/api/auth/github", `{"code":"oauth-code"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("github login: %d %s", w.Code, w.Body.String())
	}
	gh := decodeUser(t, w)

	if gh.User.ID != local.User.ID {
		t.Fatalf("github created a second account")
	}
	if gh.User.Kind != "github" {
		t.Fatalf("session type = %q, want github", gh.User.Kind)
	}
	if e.Store.count() != 1 {
		t.Fatalf("stored accounts = %d, want 1", e.Store.count())
	}
	u, _ := e.Store.FindUserByID(nil, local.User.ID)
	if u.GitHubID != "42" {
		t.Fatalf("github id not attached: %q", u.GitHubID)
	}
}

func TestFederatedLoginFailures(t *testing.T) {
	e := newTestEnv(t)

	e.GitHub.err = oauth.ErrMissingVerifiedEmail
	if w := e.do("POST", "/api/auth/github", `{"code":"c"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing verified email: %d", w.Code)
	}

	e.Google.err = oauth.ErrProviderRejected
	if w := e.do("POST", "/api/auth/google", `{"token":"t"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("rejected credential: %d", w.Code)
	}

	if w := e.do("POST", "/api/auth/google", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty token: %d", w.Code)
	}
	if e.Store.count() != 0 {
		t.Fatalf("failed logins created accounts: %d", e.Store.count())
	}
}

func TestUpdateHandlesRequiresSession(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)

	if w := e.do("POST", "/api/auth/update-handles", `{"platform":"leetcode","handle":"tourist"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous update: %d", w.Code)
	}
	u, _ := e.Store.FindUserByEmail(nil, "a@x.com")
	if u.Handles["leetcode"] != "a" {
		t.Fatalf("anonymous request mutated the handle: %q", u.Handles["leetcode"])
	}

	w = e.do("POST", "/api/auth/update-handles", `{"platform":"leetcode","handle":"tourist"}`, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	out := decodeUser(t, w)
	if out.User.Handles["leetcode"] != "tourist" {
		t.Fatalf("handle not updated: %v", out.User.Handles)
	}
	if out.User.Handles["codeforces"] != "a" || out.User.Handles["codechef"] != "a" {
		t.Fatalf("other handles changed: %v", out.User.Handles)
	}

	if w := e.do("POST", "/api/auth/update-handles", `{"platform":"topcoder","handle":"x"}`, ck); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown platform: %d", w.Code)
	}
}

func TestUpdateProfileMergesNonEmptyFields(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse","name":"Alice"}`)
	ck := sessionCookie(t, w)

	w = e.do("POST", "/api/auth/update-profile", `{"bio":"solving things","location":"Almaty"}`, ck)
	if w.Code != http.StatusOK {
		t.Fatalf("update profile: %d %s", w.Code, w.Body.String())
	}
	u, _ := e.Store.FindUserByEmail(nil, "a@x.com")
	if u.Bio != "solving things" || u.Location != "Almaty" {
		t.Fatalf("fields not merged: %+v", u)
	}
	if u.Name != "Alice" {
		t.Fatalf("empty field overwrote name: %q", u.Name)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)

	w = e.do("POST", "/api/auth/logout", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
	if !cookieCleared(w) {
		t.Fatalf("logout left the cookie: %v", w.Result().Cookies())
	}
}

func TestDeleteAccountInvalidatesStaleCookie(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	ck := sessionCookie(t, w)

	w = e.do("DELETE", "/api/auth/delete", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if !cookieCleared(w) {
		t.Fatal("delete did not clear the cookie")
	}
	if e.Store.count() != 0 {
		t.Fatalf("account still stored: %d", e.Store.count())
	}

	// A client replaying the old, still unexpired cookie is anonymous and
	// gets the cookie cleared again.
	w = e.do("GET", "/api/auth/me", "", ck)
	if w.Code != http.StatusOK {
		t.Fatalf("me after delete: %d", w.Code)
	}
	if me := decodeUser(t, w); me.User != nil {
		t.Fatalf("deleted account resolved: %s", w.Body.String())
	}
	if !cookieCleared(w) {
		t.Fatal("stale cookie not cleared")
	}
}

func TestMeAnonymous(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("GET", "/api/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	if me := decodeUser(t, w); me.User != nil {
		t.Fatalf("anonymous me: %s", w.Body.String())
	}
}

func TestExpiredAndGarbageTokensSelfHeal(t *testing.T) {
	e := newTestEnv(t)

	w := e.do("POST", "/api/auth/register", `{"email":"a@x.com","password":"correcthorse"}`)
	reg := decodeUser(t, w)

	expired, err := security.MakeSession("test_secret", reg.User.ID, "local", -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w = e.do("GET", "/api/auth/me", "", &http.Cookie{Name: "token", Value: expired})
	if w.Code != http.StatusOK {
		t.Fatalf("expired token: %d", w.Code)
	}
	if me := decodeUser(t, w); me.User != nil {
		t.Fatal("expired token resolved to an account")
	}
	if !cookieCleared(w) {
		t.Fatal("expired cookie not cleared")
	}

	w = e.do("GET", "/api/auth/me", "", &http.Cookie{Name: "token", Value: "not-a-jwt"})
	if me := decodeUser(t, w); me.User != nil {
		t.Fatal("garbage token resolved to an account")
	}
	if !cookieCleared(w) {
		t.Fatal("garbage cookie not cleared")
	}
}
