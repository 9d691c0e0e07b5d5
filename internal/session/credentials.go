package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"storefront/internal/domain"
	"storefront/internal/repository/blob"
)

// Blob keys of the credentials triple.
const (
	KeyToken = "token"
	KeyEmail = "email"
	KeyRole  = "role"
)

// RoleAdmin is the role that unlocks the admin console.
const RoleAdmin = "admin"

// roleClaimURI is the role claim name emitted by ASP.NET Core identity.
const roleClaimURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

// Credentials reads and writes the auth triple of one session.
type Credentials struct {
	repo blob.Repository
	now  func() time.Time
}

func NewCredentials(repo blob.Repository) *Credentials {
	return &Credentials{repo: repo, now: time.Now}
}

// Identity is a read-only view of the credentials.
type Identity struct {
	LoggedIn bool   `json:"loggedIn"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Admin    bool   `json:"admin"`
}

// Save stores the triple returned by a successful login.
func (c *Credentials) Save(ctx context.Context, u domain.User) error {
	if u.Token == "" {
		return errors.New("token required")
	}
	role := u.Role
	if role == "" {
		role = roleFromToken(u.Token)
	}
	for _, kv := range [][2]string{{KeyToken, u.Token}, {KeyEmail, u.Email}, {KeyRole, role}} {
		if err := c.repo.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	return nil
}

// Clear removes the triple. All three removals are attempted.
func (c *Credentials) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyToken, KeyEmail, KeyRole} {
		if err := c.repo.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Token returns the stored token, or "" when there is none or it has expired.
func (c *Credentials) Token(ctx context.Context) string {
	tok := c.get(ctx, KeyToken)
	if tok == "" || c.expired(tok) {
		return ""
	}
	return tok
}

func (c *Credentials) Email(ctx context.Context) string {
	return c.get(ctx, KeyEmail)
}

// Role returns the stored role, falling back to the token's role claim.
func (c *Credentials) Role(ctx context.Context) string {
	if r := c.get(ctx, KeyRole); r != "" {
		return r
	}
	return roleFromToken(c.get(ctx, KeyToken))
}

func (c *Credentials) IsLoggedIn(ctx context.Context) bool {
	return c.Token(ctx) != ""
}

func (c *Credentials) IsAdmin(ctx context.Context) bool {
	return c.IsLoggedIn(ctx) && strings.EqualFold(c.Role(ctx), RoleAdmin)
}

func (c *Credentials) Identity(ctx context.Context) Identity {
	if !c.IsLoggedIn(ctx) {
		return Identity{}
	}
	role := c.Role(ctx)
	return Identity{
		LoggedIn: true,
		Email:    c.Email(ctx),
		Role:     role,
		Admin:    strings.EqualFold(role, RoleAdmin),
	}
}

func (c *Credentials) get(ctx context.Context, key string) string {
	v, err := c.repo.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}

// expired reports whether tok is a JWT whose exp claim lies in the past.
// Opaque tokens never expire locally; the backend is the judge.
func (c *Credentials) expired(tok string) bool {
	claims, ok := parseClaims(tok)
	if !ok {
		return false
	}
	return !claims.VerifyExpiresAt(c.now().Unix(), false)
}

func parseClaims(tok string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func roleFromToken(tok string) string {
	claims, ok := parseClaims(tok)
	if !ok {
		return ""
	}
	for _, name := range []string{"role", roleClaimURI} {
		switch v := claims[name].(type) {
		case string:
			return v
		case []any:
			for _, r := range v {
				if s, ok := r.(string); ok && strings.EqualFold(s, RoleAdmin) {
					return s
				}
			}
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
