// Package account holds the credential, reconciliation and profile
// operations behind the auth handlers. There is one code path per
// operation regardless of how the account was created; the session kind
// only selects the credential-verification step.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/comptracker/comptracker-api/internal/domain"
	"github.com/comptracker/comptracker-api/internal/oauth"
	"github.com/comptracker/comptracker-api/internal/security"
)

// Store is the persistence surface the service needs. *repo.Store
// implements it against MongoDB; tests use an in-memory implementation.
//
// Find methods return (nil, nil) when no account matches. CreateUser must
// return ErrDuplicate (wrapped or bare) when the unique-email constraint
// rejects the insert.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	AttachProvider(ctx context.Context, id, kind, subjectID, avatar string) (*domain.User, error)
	UpdateHandle(ctx context.Context, id, platform, handle string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, fields map[string]string) (*domain.User, error)
	UpdateStat(ctx context.Context, id, platform string, solved int) error
	DeleteUser(ctx context.Context, id string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// ProfileUpdate carries the mutable profile fields. Empty fields are left
// untouched (partial merge).
type ProfileUpdate struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Avatar   string `json:"avatar"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// Register creates a local account. The password is bcrypt-hashed before
// it ever reaches the store; platform handles default to the email
// local-part.
func (s *Service) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = normalizeEmail(email)

	if u, err := s.store.FindUserByEmail(ctx, email); err != nil {
		return nil, err
	} else if u != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = localPart(email)
	}
	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Kind:         domain.KindLocal,
		Name:         name,
		Handles:      domain.DefaultHandles(email),
		Stats:        domain.DefaultStats(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		// A concurrent register for the same email won the insert.
		if isDuplicate(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return u, nil
}

// Login validates a local credential. Unknown email and wrong password
// fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" || !security.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ResolveOrCreate maps a normalized provider identity onto an account:
// find by email, create when absent, attach the provider id when missing.
// A second login with the same provider identity is a no-op. An account
// may end up linked to more than one provider; email is the join key.
func (s *Service) ResolveOrCreate(ctx context.Context, id *oauth.Identity, kind string) (*domain.User, error) {
	email := normalizeEmail(id.Email)

	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		nu := &domain.User{
			Email:   email,
			Kind:    kind,
			Name:    id.Name,
			Avatar:  id.Avatar,
			Handles: domain.DefaultHandles(email),
			Stats:   domain.DefaultStats(),
		}
		if nu.Name == "" {
			nu.Name = localPart(email)
		}
		nu.SetProviderID(kind, id.SubjectID)
		err = s.store.CreateUser(ctx, nu)
		if err == nil {
			return nu, nil
		}
		if !isDuplicate(err) {
			return nil, err
		}
		// Concurrent first login for the same new email: the unique index
		// is the race arbiter. Re-fetch and continue as "existing".
		if u, err = s.store.FindUserByEmail(ctx, email); err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrNotFound
		}
	}

	if u.ProviderID(kind) != "" {
		return u, nil
	}
	return s.store.AttachProvider(ctx, u.ID.Hex(), kind, id.SubjectID, id.Avatar)
}

// ByID resolves a session's account id to a live account. (nil, nil)
// means the account was deleted after the token was issued.
func (s *Service) ByID(ctx context.Context, id string) (*domain.User, error) {
	return s.store.FindUserByID(ctx, id)
}

// UpdateHandle sets one platform handle, leaving the others untouched.
func (s *Service) UpdateHandle(ctx context.Context, id, platform, handle string) (*domain.User, error) {
	u, err := s.store.UpdateHandle(ctx, id, platform, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// UpdateProfile merges the non-empty fields of in into the account.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*domain.User, error) {
	fields := map[string]string{}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Bio != "" {
		fields["bio"] = in.Bio
	}
	if in.Phone != "" {
		fields["phone"] = in.Phone
	}
	if in.Location != "" {
		fields["location"] = in.Location
	}
	if in.Avatar != "" {
		fields["avatar"] = in.Avatar
	}
	u, err := s.store.UpdateProfile(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// RecordStat refreshes the advisory cached solved-count for a platform.
// Failures are the caller's to ignore; live fetches stay authoritative.
func (s *Service) RecordStat(ctx context.Context, id, platform string, solved int) error {
	return s.store.UpdateStat(ctx, id, platform, solved)
}

// Delete hard-deletes the account. There is no tombstone; an unexpired
// session token for a deleted account resolves to anonymous.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

func isDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
