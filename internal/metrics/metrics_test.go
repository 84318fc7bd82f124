package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRemoteCall("answer", 10*time.Millisecond, nil)
	r.ObserveRemoteCall("answer", 10*time.Millisecond, errors.New("boom"))
	r.ObserveTurn("option", "accepted")
	r.IncOnboardingCompleted()
	r.SetConversations(3)

	if got := testutil.ToFloat64(r.remoteCallsTotal.WithLabelValues("answer", "error")); got != 1 {
		t.Fatalf("expected 1 failed answer call, got %v", got)
	}
	if got := testutil.ToFloat64(r.onboardings); got != 1 {
		t.Fatalf("expected 1 onboarding, got %v", got)
	}
	if got := testutil.ToFloat64(r.conversations); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "advisor_turns_total") {
		t.Fatalf("expected turns metric in output")
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveTurn("text", "ignored")
	r.ObserveRemoteCall("init", time.Second, nil)
	r.IncOnboardingCompleted()
	r.SetConversations(1)
}
