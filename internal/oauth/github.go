package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBase = "https://api.github.com"

// GitHub runs the OAuth authorization-code flow: the code is exchanged
// server-side for an access token, then the profile is fetched. GitHub
// hides the email when the user marks it private; in that case the email
// list is fetched and the primary verified entry is used.
type GitHub struct {
	cfg *oauth2.Config

	// APIBase is overridable for tests.
	APIBase string
	httpc   *http.Client
}

func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		APIBase: githubAPIBase,
		httpc:   &http.Client{Timeout: 5 * time.Second},
	}
}

// SetTokenURL points the code exchange at a test server.
func (g *GitHub) SetTokenURL(url string) {
	g.cfg.Endpoint = oauth2.Endpoint{TokenURL: url}
}

func (g *GitHub) Exchange(ctx context.Context, code string) (*Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpc)
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed", ErrProviderRejected)
	}

	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(ctx, tok.AccessToken, "/user", &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, ErrProviderRejected
	}

	email := profile.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := g.getJSON(ctx, tok.AccessToken, "/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, ErrMissingVerifiedEmail
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}
	return &Identity{
		Email:     email,
		Name:      name,
		Avatar:    profile.AvatarURL,
		SubjectID: strconv.FormatInt(profile.ID, 10),
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.APIBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("github api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrProviderRejected
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrProviderRejected
	}
	return nil
}
