package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "skyauth",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m.WithClock(now)
}

func TestIssueAndParseCarryClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return now })

	token, issued, err := m.Issue(TypeRefresh, IssueInput{UserID: "u1", TokenVersion: 4, TwoFactor: true, RememberMe: true, TTL: 30 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected jti")
	}

	claims, err := m.Parse(token, TypeRefresh)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UID != "u1" || claims.TokenVersion != 4 || !claims.TwoFactor || !claims.RememberMe {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Time.Sub(now); got != 30*24*time.Hour {
		t.Fatalf("expected remember-me lifetime, got %s", got)
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := newHSManager(t, time.Now)

	access, _, err := m.Issue(TypeAccess, IssueInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(access, TypeRefresh); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}

	refresh, _, err := m.Issue(TypeRefresh, IssueInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(refresh, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}
}

func TestParseReportsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, func() time.Time { return now })

	token, _, err := m.Issue(TypeAccess, IssueInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := m.Parse(token, TypeAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m := newHSManager(t, time.Now)
	token, _, err := m.Issue(TypeAccess, IssueInput{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := m.Parse(tampered, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := m.Parse("not-a-token", TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{UID: "u1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "skyauth",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.Issue(TypeAccess, IssueInput{UserID: "u"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(access, TypeAccess); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(issuer, audience string) string {
		c := Claims{UID: "u", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}}
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	if _, err := m.Parse(sign("other", "api"), TypeAccess); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign("skyauth", "other-api"), TypeAccess); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestParseRejectsUnknownKid(t *testing.T) {
	pub, priv := newEdKeys(t)
	otherPub, otherPriv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub, "k0": otherPub},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	c := Claims{UID: "u", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	rotated := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c)
	rotated.Header["kid"] = "k0"
	old, err := rotated.SignedString(otherPriv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(old, TypeAccess); err != nil {
		t.Fatalf("expected rotated key to verify: %v", err)
	}

	unknown := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c)
	unknown.Header["kid"] = "k9"
	bad, _ := unknown.SignedString(priv)
	if _, err := m.Parse(bad, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected unknown kid to fail, got %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{AccessTTL: time.Hour, RefreshTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: make([]byte, 32)},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
