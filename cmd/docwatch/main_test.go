package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBasicAuthMiddleware(t *testing.T) {
	// WHAT: Requests without credentials or with a wrong password get
	// 401; the right password passes through; /healthz is always open.
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := basicAuth(hash)(ok)

	cases := []struct {
		name     string
		path     string
		user     string
		pass     string
		withAuth bool
		want     int
	}{
		{"no credentials", "/2026/08/31/", "", "", false, http.StatusUnauthorized},
		{"wrong password", "/2026/08/31/", "docwatch", "nope", true, http.StatusUnauthorized},
		{"wrong user", "/2026/08/31/", "admin", "s3cret", true, http.StatusUnauthorized},
		{"correct", "/2026/08/31/", "docwatch", "s3cret", true, http.StatusOK},
		{"healthz open", "/healthz", "", "", false, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.withAuth {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
