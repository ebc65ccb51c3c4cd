package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	hash2, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() failed on second call: %v", err)
	}
	if hash == hash2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
		wantErr  bool
	}{
		{"correct password", "correct horse", hash, true, false},
		{"wrong password", "battery staple", hash, false, false},
		{"empty password", "", hash, false, false},
		{"garbage hash", "correct horse", "not-a-hash", false, true},
		{"wrong algorithm", "correct horse", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", false, true},
		{"bad params", "correct horse", "$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA", false, true},
		{"bad version", "correct horse", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA", false, true},
		{"zero threads", "correct horse", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA", false, true},
		{"zero rounds", "correct horse", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA", false, true},
		{"huge memory", "correct horse", "$argon2id$v=19$m=4294967295,t=1,p=4$c2FsdA$aGFzaA", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyPassword(tt.password, tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VerifyPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHash) {
				t.Fatalf("expected ErrInvalidHash, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	h := Middleware("admin", hash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong user", "root", "s3cret", true, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"valid", "admin", "s3cret", true, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/pending", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(rec.Header().Get("WWW-Authenticate"), "Basic") {
				t.Fatal("expected Basic challenge")
			}
		})
	}
}

func TestMiddlewareUnusableHash(t *testing.T) {
	h := Middleware("admin", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/admin/pending", nil)
	req.SetBasicAuth("admin", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
