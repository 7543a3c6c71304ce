package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account kinds. Kind records which credential path created the session:
// a password check for local accounts, a provider exchange otherwise.
const (
	KindLocal  = "local"
	KindGoogle = "google"
	KindGitHub = "github"
)

// Platforms tracked by the app. Handles for every platform default to the
// local-part of the account email at creation time.
var Platforms = []string{"leetcode", "codeforces", "codechef"}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"        json:"id"`
	Email        string             `bson:"email"                json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Kind         string             `bson:"kind"                 json:"kind"`
	GoogleID     string             `bson:"google_id,omitempty"  json:"-"`
	GitHubID     string             `bson:"github_id,omitempty"  json:"-"`
	Name         string             `bson:"name"                 json:"name"`
	Avatar       string             `bson:"avatar,omitempty"     json:"avatar"`
	Bio          string             `bson:"bio,omitempty"        json:"bio,omitempty"`
	Phone        string             `bson:"phone,omitempty"      json:"phone,omitempty"`
	Location     string             `bson:"location,omitempty"   json:"location,omitempty"`
	Handles      map[string]string  `bson:"api_handles"          json:"api_handles"`
	Stats        map[string]int     `bson:"stats"                json:"stats"`
	CreatedAt    time.Time          `bson:"created_at"           json:"created_at"`
}

// Local reports whether the account authenticates with a password.
func (u *User) Local() bool { return u.Kind == KindLocal }

// ProviderID returns the subject id recorded for the given federated kind.
func (u *User) ProviderID(kind string) string {
	switch kind {
	case KindGoogle:
		return u.GoogleID
	case KindGitHub:
		return u.GitHubID
	}
	return ""
}

// SetProviderID records a federated subject id. Unknown kinds are ignored.
func (u *User) SetProviderID(kind, id string) {
	switch kind {
	case KindGoogle:
		u.GoogleID = id
	case KindGitHub:
		u.GitHubID = id
	}
}

// View is the account shape returned to clients. The password hash and
// provider subject ids never leave the server.
type View struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Avatar    string            `json:"avatar"`
	Bio       string            `json:"bio,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Location  string            `json:"location,omitempty"`
	Handles   map[string]string `json:"api_handles"`
	Stats     map[string]int    `json:"stats"`
	Kind      string            `json:"type"`
	CreatedAt time.Time         `json:"created_at"`
}

// AsView projects the account for a session established via kind.
func (u *User) AsView(kind string) View {
	return View{
		ID:        u.ID.Hex(),
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		Phone:     u.Phone,
		Location:  u.Location,
		Handles:   u.Handles,
		Stats:     u.Stats,
		Kind:      kind,
		CreatedAt: u.CreatedAt,
	}
}

// DefaultHandles seeds every platform handle from the email local-part.
func DefaultHandles(email string) map[string]string {
	local := email
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			local = email[:i]
			break
		}
	}
	h := make(map[string]string, len(Platforms))
	for _, p := range Platforms {
		h[p] = local
	}
	return h
}

// DefaultStats zeroes the advisory per-platform solved counters.
func DefaultStats() map[string]int {
	s := make(map[string]int, len(Platforms))
	for _, p := range Platforms {
		s[p] = 0
	}
	return s
}

// KnownPlatform reports whether p is a tracked platform name.
func KnownPlatform(p string) bool {
	for _, known := range Platforms {
		if known == p {
			return true
		}
	}
	return false
}
