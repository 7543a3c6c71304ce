package queue

// Exchange carries account lifecycle events consumed by downstream
// services (mail, analytics). Routing keys: user.registered,
// user.loggedin, user.deleted.
const Exchange = "auth.events"

type UserRegistered struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
}

type UserLoggedIn struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Kind   string `json:"kind"`
}

type UserDeleted struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
