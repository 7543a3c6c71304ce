package oauth

import "errors"

// Identity is a provider-neutral view of an authenticated external user.
// Email is the cross-provider join key; SubjectID is the provider's stable
// id for the account ("sub" for Google, the numeric user id for GitHub).
type Identity struct {
	Email     string
	Name      string
	Avatar    string
	SubjectID string
}

var (
	// ErrProviderRejected covers every way a provider can refuse the inbound
	// credential: bad code, bad token, failed exchange, malformed profile.
	ErrProviderRejected = errors.New("provider rejected credential")

	// ErrMissingVerifiedEmail is returned when the provider account exposes
	// no usable email. Federated login is keyed by email, so it is rejected.
	ErrMissingVerifiedEmail = errors.New("account has no verified email")
)
