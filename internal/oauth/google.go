package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleCertsURL    = "https://www.googleapis.com/oauth2/v3/certs"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Google exchanges a Google credential for a normalized identity. Clients
// arrive with two different shapes depending on the flow they used: an ID
// token (JWT signed by Google) or an opaque access token. Exchange tries
// ID-token verification first and falls back to a userinfo lookup.
type Google struct {
	ClientID string

	// Overridable for tests.
	CertsURL    string
	UserinfoURL string

	keys  *googleKeys
	httpc *http.Client
}

func NewGoogle(clientID string) *Google {
	c := &http.Client{Timeout: 5 * time.Second}
	return &Google{
		ClientID:    clientID,
		CertsURL:    googleCertsURL,
		UserinfoURL: googleUserinfoURL,
		keys:        &googleKeys{ttl: time.Hour, httpc: c},
		httpc:       c,
	}
}

func (g *Google) Exchange(ctx context.Context, token string) (*Identity, error) {
	if id, err := g.verifyIDToken(ctx, token); err == nil {
		return id, nil
	}
	return g.userinfo(ctx, token)
}

func (g *Google) verifyIDToken(ctx context.Context, raw string) (*Identity, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	unverified, parts, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil || len(parts) != 3 {
		return nil, ErrProviderRejected
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, ErrProviderRejected
	}

	pub, err := g.keys.get(ctx, g.CertsURL, kid)
	if err != nil {
		return nil, fmt.Errorf("google certs: %w", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("bad method")
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, ErrProviderRejected
	}

	iss, _ := claims["iss"].(string)
	aud, _ := claims["aud"].(string)
	email, _ := claims["email"].(string)
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	if iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, ErrProviderRejected
	}
	if aud != g.ClientID {
		return nil, ErrProviderRejected
	}
	if email == "" || sub == "" {
		return nil, ErrProviderRejected
	}
	return &Identity{Email: email, Name: name, Avatar: picture, SubjectID: sub}, nil
}

// userinfo treats the inbound string as an OAuth2 access token and asks
// Google who it belongs to.
func (g *Google) userinfo(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrProviderRejected
	}

	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, ErrProviderRejected
	}
	if info.Email == "" || info.Sub == "" {
		return nil, ErrProviderRejected
	}
	return &Identity{Email: info.Email, Name: info.Name, Avatar: info.Picture, SubjectID: info.Sub}, nil
}

// googleKeys caches Google's JWKS signing keys by kid.
type googleKeys struct {
	ttl   time.Duration
	httpc *http.Client

	mu    sync.RWMutex
	keys  map[string]*rsa.PublicKey
	expAt time.Time
}

func (k *googleKeys) get(ctx context.Context, url, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	if pk, ok := k.keys[kid]; ok && time.Now().Before(k.expAt) {
		k.mu.RUnlock()
		return pk, nil
	}
	k.mu.RUnlock()

	if err := k.refresh(ctx, url); err != nil {
		return nil, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.keys[kid]; ok {
		return pk, nil
	}
	return nil, errors.New("kid not found in JWKS")
}

func (k *googleKeys) refresh(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}
	tmp := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.Kty != "RSA" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			continue
		}
		eb, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil || len(eb) == 0 {
			continue
		}
		e := 0
		for _, b := range eb {
			e = e<<8 + int(b)
		}
		tmp[key.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}
	}
	k.mu.Lock()
	k.keys = tmp
	k.expAt = time.Now().Add(k.ttl)
	k.mu.Unlock()
	return nil
}
