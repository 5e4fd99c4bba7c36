package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier(" "); !errors.Is(err, ErrSecretRequired) {
		t.Errorf("Expected ErrSecretRequired, got %v", err)
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	v, err := NewTokenVerifier("s3cret")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	token, err := v.Issue("user-1", "alice", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	userID, err := v.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Expected user-1, got %s", userID)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret")
	other, _ := NewTokenVerifier("different")

	t.Run("empty token", func(t *testing.T) {
		if _, err := v.Authenticate(context.Background(), ""); !errors.Is(err, ErrTokenRequired) {
			t.Errorf("Expected ErrTokenRequired, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _ := other.Issue("user-1", "", time.Hour)
		if _, err := v.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past, _ := NewTokenVerifier("s3cret")
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _ := past.Issue("user-1", "", time.Hour)
		if _, err := v.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: defaultIssuer}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if _, err := v.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "someone-else"}}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		if _, err := v.Authenticate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: defaultIssuer}}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		if _, err := v.Authenticate(context.Background(), token); !errors.Is(err, ErrSubjectRequired) {
			t.Errorf("Expected ErrSubjectRequired, got %v", err)
		}
	})
}

func TestIssue_RequiresUserID(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret")
	if _, err := v.Issue("", "", time.Hour); !errors.Is(err, ErrSubjectRequired) {
		t.Errorf("Expected ErrSubjectRequired, got %v", err)
	}
}
