package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func basicAuthHeader(id, key string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+key))
}

func serve(mw func(http.Handler) http.Handler, authorization string) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr.Code
}

func TestBasicAuth_AllowsValidCredentials(t *testing.T) {
	mw := BasicAuth("AspoiAdmin", "MembersKey001")

	if code := serve(mw, basicAuthHeader("AspoiAdmin", "MembersKey001")); code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
}

func TestBasicAuth_RejectsInvalidCredentials(t *testing.T) {
	mw := BasicAuth("AspoiAdmin", "MembersKey001")

	if code := serve(mw, basicAuthHeader("AspoiAdmin", "WrongKey")); code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, code)
	}
	if code := serve(mw, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, code)
	}
}

func TestBasicAuth_AcceptsBcryptHashedKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("MembersKey001"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	mw := BasicAuth("AspoiAdmin", string(hash))

	if code := serve(mw, basicAuthHeader("AspoiAdmin", "MembersKey001")); code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if code := serve(mw, basicAuthHeader("AspoiAdmin", string(hash))); code != http.StatusUnauthorized {
		t.Fatalf("expected the hash itself to be rejected, got %d", code)
	}
}

func TestBasicAuth_MissingConfiguration(t *testing.T) {
	mw := BasicAuth("", "")

	if code := serve(mw, basicAuthHeader("a", "b")); code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, code)
	}
}
