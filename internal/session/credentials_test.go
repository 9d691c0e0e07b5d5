package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"storefront/internal/domain"
	"storefront/internal/repository/blob"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestCredentialsSaveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	c := NewCredentials(repo)

	if c.IsLoggedIn(ctx) {
		t.Fatal("fresh credentials must not be logged in")
	}
	if err := c.Save(ctx, domain.User{Email: "ann@example.com", Token: "opaque", Role: "User"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for key, want := range map[string]string{KeyToken: "opaque", KeyEmail: "ann@example.com", KeyRole: "User"} {
		got, err := repo.Get(ctx, key)
		if err != nil || got != want {
			t.Fatalf("%s = %q, %v; want %q", key, got, err, want)
		}
	}
	if !c.IsLoggedIn(ctx) || c.IsAdmin(ctx) {
		t.Fatal("expected logged in non-admin")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if c.IsLoggedIn(ctx) || c.Email(ctx) != "" {
		t.Fatal("expected cleared credentials")
	}
}

func TestCredentialsRejectEmptyToken(t *testing.T) {
	c := NewCredentials(blob.NewMemory())
	if err := c.Save(context.Background(), domain.User{Email: "x@y.z"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCredentialsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	c := NewCredentials(blob.NewMemory())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	tok := signed(t, jwt.MapClaims{"email": "a@b.c", "exp": now.Add(time.Hour).Unix()})
	if err := c.Save(ctx, domain.User{Email: "a@b.c", Token: tok, Role: "User"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if c.Token(ctx) != tok {
		t.Fatal("expected valid token")
	}

	now = now.Add(2 * time.Hour)
	if c.IsLoggedIn(ctx) || c.Token(ctx) != "" {
		t.Fatal("expired token must read as logged out")
	}
	if c.Identity(ctx) != (Identity{}) {
		t.Fatalf("Identity = %+v", c.Identity(ctx))
	}
}

func TestCredentialsAdminRole(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		user  domain.User
		admin bool
	}{
		{"stored role", domain.User{Token: "opaque", Role: "Admin"}, true},
		{"stored user role", domain.User{Token: "opaque", Role: "User"}, false},
		{"role claim", domain.User{Token: signed(t, jwt.MapClaims{"role": "admin"})}, true},
		{"aspnet claim list", domain.User{Token: signed(t, jwt.MapClaims{roleClaimURI: []any{"User", "Admin"}})}, true},
		{"no role anywhere", domain.User{Token: signed(t, jwt.MapClaims{"sub": "1"})}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCredentials(blob.NewMemory())
			if err := c.Save(ctx, tc.user); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if got := c.IsAdmin(ctx); got != tc.admin {
				t.Fatalf("IsAdmin = %v, want %v", got, tc.admin)
			}
			if id := c.Identity(ctx); id.Admin != tc.admin || !id.LoggedIn {
				t.Fatalf("Identity = %+v", id)
			}
		})
	}
}
