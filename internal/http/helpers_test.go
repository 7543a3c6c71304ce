package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/domain"
	api "github.com/comptracker/comptracker-api/internal/http"
	"github.com/comptracker/comptracker-api/internal/oauth"
	"github.com/comptracker/comptracker-api/internal/queue"
	"github.com/comptracker/comptracker-api/internal/stats"
)

// memStore implements account.Store and api.Pinger with the same
// uniqueness semantics as the Mongo users collection, so the full router
// can be exercised without a database.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemStore() *memStore { return &memStore{users: map[string]*domain.User{}} }

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if e.Email == u.Email {
			return account.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	m.users[u.ID.Hex()] = u
	return nil
}

func (m *memStore) AttachProvider(_ context.Context, id, kind, subjectID, avatar string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	if u == nil {
		return nil, nil
	}
	u.SetProviderID(kind, subjectID)
	if avatar != "" {
		u.Avatar = avatar
	}
	return u, nil
}

func (m *memStore) UpdateHandle(_ context.Context, id, platform, handle string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	if u == nil {
		return nil, nil
	}
	u.Handles[platform] = handle
	return u, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id string, fields map[string]string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	if u == nil {
		return nil, nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v
		case "bio":
			u.Bio = v
		case "phone":
			u.Phone = v
		case "location":
			u.Location = v
		case "avatar":
			u.Avatar = v
		}
	}
	return u, nil
}

func (m *memStore) UpdateStat(_ context.Context, id, platform string, solved int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.users[id]; u != nil {
		u.Stats[platform] = solved
	}
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// stubProvider stands in for either adapter.
type stubProvider struct {
	id    *oauth.Identity
	err   error
	calls int
}

func (s *stubProvider) Exchange(_ context.Context, _ string) (*oauth.Identity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.id
	return &cp, nil
}

type testEnv struct {
	Store   *memStore
	Google  *stubProvider
	GitHub  *stubProvider
	Handler *api.Handler
	Router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := newMemStore()
	accounts := account.NewService(mem)
	h := api.NewHandler(accounts, mem, "test_secret", 7, false, nil, 0, queue.NewNoop())

	google := &stubProvider{}
	github := &stubProvider{}
	h.Google = google
	h.GitHub = github
	h.Stats = stats.NewClient()

	return &testEnv{
		Store:   mem,
		Google:  google,
		GitHub:  github,
		Handler: h,
		Router:  api.NewRouter(h),
	}
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	e.Router.ServeHTTP(w, req)
	return w
}
