package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestHTTPClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, nil)
}

func TestHTTPClientSetContextSendsProfile(t *testing.T) {
	var got map[string]string
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/set-context" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	err := c.SetContext(context.Background(), "session_1", ContextData{
		Concentration: "Computer Science",
		GradeLevel:    "Freshman",
		Semester:      "Fall 2025",
	})
	if err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	want := map[string]string{
		"sessionId":     "session_1",
		"concentration": "Computer Science",
		"gradeLevel":    "Freshman",
		"semester":      "Fall 2025",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestHTTPClientValidateConcentration(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Concentration == "CS" {
			_, _ = w.Write([]byte(`{"proper_name":"Computer Science"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	name, err := c.ValidateConcentration(context.Background(), "CS")
	if err != nil || name != "Computer Science" {
		t.Fatalf("got %q, %v", name, err)
	}

	name, err = c.ValidateConcentration(context.Background(), "Underwater Basketry")
	if err != nil || name != "Underwater Basketry" {
		t.Fatalf("expected raw fallback, got %q, %v", name, err)
	}
}

func TestHTTPClientNon2xxIsStatusError(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	err := c.InitSession(context.Background(), "session_1")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	if _, err := c.Answer(context.Background(), "session_1", "hi"); !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus from Answer, got %v", err)
	}
}

func TestHTTPClientAnswerDecodesFields(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "session_9" || req.Message != "What should I take?" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"response":"Take CSCI 0150.","intent":"recommend","data_sources":["cab"]}`))
	})

	ans, err := c.Answer(context.Background(), "session_9", "What should I take?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.Response != "Take CSCI 0150." || ans.Intent != "recommend" || len(ans.DataSources) != 1 || ans.Failed() {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(HTTPClientConfig{BaseURL: url, Timeout: time.Second}, nil)
	if err := c.InitSession(context.Background(), "s"); err == nil {
		t.Fatal("expected transport error")
	}
}
