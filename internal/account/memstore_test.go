package account_test

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/domain"
)

// memStore is an in-memory account.Store with the same uniqueness
// semantics as the Mongo users collection.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User // by hex id
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*domain.User{}}
}

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
	if u.Handles == nil {
		u.Handles = map[string]string{}
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
		if u.Stats == nil {
			u.Stats = map[string]int{}
		}
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
