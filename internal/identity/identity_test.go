package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashureev/advisor-chat/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMiddlewareIssuesCookieAndCreatesUser(t *testing.T) {
	repo := newRepo(t)

	var gotUser, gotTab string
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotTab = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set(SessionHeaderName, "tab-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if !isValidAnonID(gotUser) {
		t.Fatalf("expected anonymous id, got %q", gotUser)
	}
	if gotTab != "tab-42" {
		t.Errorf("tab id = %q, want tab-42", gotTab)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotUser {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	user, err := repo.GetUser(context.Background(), gotUser)
	if err != nil || user == nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if user.Username != deriveUsername(gotUser) {
		t.Errorf("username = %q", user.Username)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newRepo(t)
	id, err := generateAnonID()
	if err != nil {
		t.Fatal(err)
	}

	var gotUser string
	h := Middleware(repo, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/chat?tab_id=x", nil)
		req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
		h.ServeHTTP(httptest.NewRecorder(), req)
		if gotUser != id {
			t.Fatalf("request %d: user = %q, want %q", i, gotUser, id)
		}
	}
}

func TestSanitizeSessionID(t *testing.T) {
	tests := map[string]string{
		"":                DefaultSessionIDValue,
		"  ":              DefaultSessionIDValue,
		"tab-1":           "tab-1",
		"bad id!":         DefaultSessionIDValue,
		"a:b.c_d":         "a:b.c_d",
		"<script>x</...>": DefaultSessionIDValue,
	}
	for in, want := range tests {
		if got := sanitizeSessionID(in); got != want {
			t.Errorf("sanitizeSessionID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "anon_0123456789abcdef0123456789abcdef", "")
	if SessionIDFromContext(ctx) != DefaultSessionIDValue {
		t.Errorf("empty tab id should map to default")
	}
	if UserIDFromContext(ctx) != "anon_0123456789abcdef0123456789abcdef" {
		t.Errorf("user id = %q", UserIDFromContext(ctx))
	}
	if SessionIDFromContext(context.Background()) != DefaultSessionIDValue {
		t.Errorf("missing tab id should map to default")
	}
}
