package jwt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

func newTestCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

var alice = Subject{ID: "u-1", Email: "alice@example.com", Name: "Alice", UserType: "creator"}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	if _, err := NewCodec(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	if _, err := NewCodec(Config{Secret: testSecret, TTLs: map[TokenType]time.Duration{"other": time.Minute}}); err == nil {
		t.Fatal("expected unknown token type ttl to be rejected")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t, Config{Issuer: "edgeauth", Audience: "api"})

	token, issued, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := c.Verify(context.Background(), token, TypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != alice.ID || claims.Email != alice.Email || claims.Name != alice.Name || claims.UserType != alice.UserType {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected jti %q, got %q", issued.ID, claims.ID)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 2*time.Hour {
		t.Fatalf("expected 2h access lifetime, got %v", got)
	}
	if claims.SessionID != "" {
		t.Fatalf("expected no sid, got %q", claims.SessionID)
	}
}

func TestIssueCarriesSessionID(t *testing.T) {
	c := newTestCodec(t, Config{})
	subject := alice
	subject.SessionID = "sess-1"

	token, _, err := c.Issue(TypeRefresh, subject)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := c.Verify(context.Background(), token, TypeRefresh)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("expected sid sess-1, got %q", claims.SessionID)
	}
}

func TestIssueUsesUniqueJTI(t *testing.T) {
	c := newTestCodec(t, Config{})
	_, a, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, b, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct jti values")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := newTestCodec(t, Config{})
	b := newTestCodec(t, Config{Secret: []byte("fedcba9876543210fedcba9876543210")})

	token, _, err := a.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(context.Background(), token, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsNegativeTTL(t *testing.T) {
	c := newTestCodec(t, Config{})
	claims := &Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: alice.ID}}

	token, err := c.Create(claims, -time.Second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.Verify(context.Background(), token, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	start := time.Unix(1_800_000_000, 0)
	clock := &fixedClock{t: start}
	c := newTestCodec(t, Config{Now: clock.now})

	token, _, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = start.Add(7199 * time.Second)
	if _, err := c.Verify(context.Background(), token, TypeAccess); err != nil {
		t.Fatalf("expected token valid before expiry: %v", err)
	}

	clock.t = start.Add(7200 * time.Second)
	if _, err := c.Verify(context.Background(), token, TypeAccess); err == nil {
		t.Fatal("expected token invalid at exp")
	}
}

func TestVerifyKeysAreIsolatedPerType(t *testing.T) {
	c := newTestCodec(t, Config{})

	reset, _, err := c.Issue(TypePasswordReset, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Re-label the payload as an access token while keeping the reset signature.
	parts := strings.Split(reset, ".")
	var claims Claims
	if _, _, err := gjwt.NewParser().ParseUnverified(reset, &claims); err != nil {
		t.Fatalf("parse unverified: %v", err)
	}
	claims.Type = TypeAccess
	relabelled, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SigningString()
	if err != nil {
		t.Fatalf("signing string: %v", err)
	}
	forged := relabelled + "." + parts[2]

	if _, err := c.Verify(context.Background(), forged, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected relabelled token to fail, got %v", err)
	}
	if _, err := c.Verify(context.Background(), forged, ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected relabelled token to fail without type hint, got %v", err)
	}
}

func TestVerifyRejectsExpectedTypeMismatch(t *testing.T) {
	c := newTestCodec(t, Config{})

	refresh, _, err := c.Issue(TypeRefresh, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(context.Background(), refresh, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected refresh token to be rejected as access, got %v", err)
	}
	if _, err := c.Verify(context.Background(), refresh, TypeRefresh); err != nil {
		t.Fatalf("expected refresh token to verify: %v", err)
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	c := newTestCodec(t, Config{})

	inputs := []string{
		"",
		"abc",
		"a.b",
		"a.b.c.d",
		"eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1LTEiLCJ0eXAiOiJhY2Nlc3MifQ.",
		"!!!.???.***",
	}
	for _, in := range inputs {
		if _, err := c.Verify(context.Background(), in, ""); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected %q to be rejected with ErrTokenInvalid, got %v", in, err)
		}
	}
}

func TestVerifyRejectsAlgorithmSwitch(t *testing.T) {
	c := newTestCodec(t, Config{})
	key, err := deriveKey(testSecret, TypeAccess)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   alice.ID,
		ID:        "jti-1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(context.Background(), token, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	issuer := newTestCodec(t, Config{Issuer: "edgeauth", Audience: "api"})
	other := newTestCodec(t, Config{Issuer: "other", Audience: "api"})

	token, _, err := other.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(context.Background(), token, TypeAccess); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	otherAud := newTestCodec(t, Config{Issuer: "edgeauth", Audience: "admin"})
	token, _, err = otherAud.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(context.Background(), token, TypeAccess); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	start := time.Unix(1_800_000_000, 0)
	clock := &fixedClock{t: start.Add(time.Hour)}
	issuer := newTestCodec(t, Config{Now: clock.now})
	token, _, err := issuer.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier := newTestCodec(t, Config{Now: func() time.Time { return start }})
	if _, err := verifier.Verify(context.Background(), token, TypeAccess); err == nil {
		t.Fatal("expected iat one hour in the future to fail")
	}
}

func TestVerifyConsultsRevocations(t *testing.T) {
	revocations := &fakeRevocations{revoked: map[string]bool{}}
	c := newTestCodec(t, Config{Revocations: revocations})

	token, claims, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(context.Background(), token, TypeAccess); err != nil {
		t.Fatalf("expected token to verify before revocation: %v", err)
	}

	revocations.revoked[claims.ID] = true
	if _, err := c.Verify(context.Background(), token, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestVerifyFailsClosedOnRevocationError(t *testing.T) {
	c := newTestCodec(t, Config{Revocations: &fakeRevocations{err: errors.New("cache down")}})

	token, _, err := c.Issue(TypeAccess, alice)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := c.Verify(context.Background(), token, TypeAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected revocation lookup failure to reject, got %v", err)
	}
}

func TestCreateRequiresKnownTypeAndSubject(t *testing.T) {
	c := newTestCodec(t, Config{})
	if _, err := c.Create(&Claims{Type: "session", RegisteredClaims: gjwt.RegisteredClaims{Subject: "u"}}, time.Minute); err == nil {
		t.Fatal("expected unknown type to fail")
	}
	if _, err := c.Create(&Claims{Type: TypeAccess}, time.Minute); err == nil {
		t.Fatal("expected missing subject to fail")
	}
}
