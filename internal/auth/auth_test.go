package auth_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/micro-nova/upm6720d/internal/auth"
)

func writeKeys(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, auth.KeysFileName), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newService(t *testing.T, dir string) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func serve(svc *auth.Service, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, called
}

func TestService_OpenMode(t *testing.T) {
	svc := newService(t, t.TempDir())
	if !svc.IsOpenMode() {
		t.Error("IsOpenMode() = false, want true without a key file")
	}
	if _, ok := svc.Verify(""); ok {
		t.Error("empty key must never verify")
	}

	rr, called := serve(svc, httptest.NewRequest(http.MethodPut, "/api/charge", nil))
	if !called || rr.Code != http.StatusOK {
		t.Errorf("open mode: called=%v status=%d", called, rr.Code)
	}
}

func TestService_Verify(t *testing.T) {
	dir := t.TempDir()
	writeKeys(t, dir, "keys:\n  - name: bms\n    key: s3cret\n  - name: blank\n    key: \"\"\n")
	svc := newService(t, dir)

	tests := []struct {
		key  string
		want bool
	}{
		{"s3cret", true},
		{"wrong", false},
		{"", false},
	}
	for _, tc := range tests {
		name, ok := svc.Verify(tc.key)
		if ok != tc.want {
			t.Errorf("Verify(%q) = %v, want %v", tc.key, ok, tc.want)
		}
		if ok && name != "bms" {
			t.Errorf("Verify(%q) name = %q", tc.key, name)
		}
	}
	if svc.IsOpenMode() {
		t.Error("expected secured mode with a key configured")
	}
}

func TestMiddleware_Secured(t *testing.T) {
	dir := t.TempDir()
	writeKeys(t, dir, "keys:\n  - name: bms\n    key: s3cret\n")
	svc := newService(t, dir)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"header", func() *http.Request {
			r := httptest.NewRequest(http.MethodPut, "/api/present", nil)
			r.Header.Set("X-API-Key", "s3cret")
			return r
		}, http.StatusOK},
		{"query", func() *http.Request {
			return httptest.NewRequest(http.MethodPut, "/api/present?api-key=s3cret", nil)
		}, http.StatusOK},
		{"wrong key", func() *http.Request {
			r := httptest.NewRequest(http.MethodPut, "/api/present", nil)
			r.Header.Set("X-API-Key", "nope")
			return r
		}, http.StatusUnauthorized},
		{"no key", func() *http.Request {
			return httptest.NewRequest(http.MethodPut, "/api/present", nil)
		}, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr, called := serve(svc, tc.req())
			if rr.Code != tc.status {
				t.Errorf("status = %d, want %d", rr.Code, tc.status)
			}
			if called != (tc.status == http.StatusOK) {
				t.Errorf("next called = %v", called)
			}
			if tc.status == http.StatusUnauthorized && rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestService_Reload(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	writeKeys(t, dir, "keys:\n  - name: a\n    key: reload-key\n")
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := svc.Verify("reload-key"); !ok {
		t.Error("key not accepted after reload")
	}

	if err := os.Remove(filepath.Join(dir, auth.KeysFileName)); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !svc.IsOpenMode() {
		t.Error("expected open mode after the key file was removed")
	}
}

func TestService_WatchesKeyFile(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir)

	writeKeys(t, dir, "keys:\n  - name: a\n    key: watched\n")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := svc.Verify("watched"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("key file change not picked up by the watcher")
}

func TestService_BadKeyFile(t *testing.T) {
	dir := t.TempDir()
	writeKeys(t, dir, "keys: [unterminated\n")
	if _, err := auth.NewService(dir); err == nil {
		t.Error("expected an error for a malformed key file")
	}
}

func TestService_MissingConfigDir_NoError(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "does-not-exist"))
	if !svc.IsOpenMode() {
		t.Error("expected open mode for non-existent config dir")
	}
}
