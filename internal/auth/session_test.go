package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestSessionIssueAndVerify(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)

	token, err := m.Issue(42)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != 42 {
		t.Fatalf("Verify() userID = %d, want 42", userID)
	}
}

func TestSessionVerifyRejections(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := m.Verify("not.a.token"); err != ErrNoSession {
			t.Fatalf("Verify() = %v, want ErrNoSession", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSessionManager("fedcba9876543210", time.Hour)
		token, err := other.Issue(1)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Verify(token); err != ErrNoSession {
			t.Fatalf("Verify() = %v, want ErrNoSession", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short := NewSessionManager("0123456789abcdef", -time.Minute)
		token, err := short.Issue(1)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Verify(token); err != ErrNoSession {
			t.Fatalf("Verify() = %v, want ErrNoSession", err)
		}
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		// alg=none tokens must never verify
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user_id": float64(1),
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Verify(signed); err != ErrNoSession {
			t.Fatalf("Verify() = %v, want ErrNoSession", err)
		}
	})
}

func TestSessionCookieRoundTrip(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)

	token, err := m.Issue(7)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	m.SetCookie(rec, token)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName {
		t.Fatalf("cookie name = %q, want %q", c.Name, CookieName)
	}
	if !c.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(c)

	userID, err := m.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if userID != 7 {
		t.Fatalf("FromRequest() userID = %d, want 7", userID)
	}
}

func TestFromRequestNoCookie(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if _, err := m.FromRequest(req); err != ErrNoSession {
		t.Fatalf("FromRequest() = %v, want ErrNoSession", err)
	}
}

func TestClearCookie(t *testing.T) {
	m := NewSessionManager("0123456789abcdef", time.Hour)
	rec := httptest.NewRecorder()
	m.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Fatalf("MaxAge = %d, want -1", cookies[0].MaxAge)
	}
}
