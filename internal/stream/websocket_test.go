package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/ashureev/advisor-chat/internal/chatlog"
	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/ashureev/advisor-chat/internal/identity"
	"github.com/ashureev/advisor-chat/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAdvisor struct{}

func (echoAdvisor) InitSession(context.Context, string) error { return nil }
func (echoAdvisor) SetContext(context.Context, string, advisor.ContextData) error {
	return nil
}
func (echoAdvisor) ValidateConcentration(_ context.Context, raw string) (string, error) {
	return raw, nil
}
func (echoAdvisor) Answer(_ context.Context, _ string, q string) (advisor.Answer, error) {
	return advisor.Answer{Response: "echo: " + q}, nil
}

func newStreamServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	hub := NewHub(testLogger())
	vocab := conversation.DefaultVocabulary(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	reg := session.NewRegistry(func(ctx context.Context, key session.Key) (*conversation.Conversation, error) {
		return conversation.New(ctx, conversation.Options{
			Client:     echoAdvisor{},
			Vocabulary: vocab,
			Logger:     testLogger(),
			Hooks: conversation.Hooks{
				OnAppend: func(sid string, m domain.Message) { hub.Publish(key, MessageEvent(sid, m)) },
				OnReset:  func(sid string) { hub.Publish(key, ResetEvent(sid)) },
			},
		})
	}, nil, testLogger())
	t.Cleanup(reg.CloseAll)

	ws := NewWebSocketHandler(reg, hub, chatlog.Nop(), "*", true, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithIdentity(r.Context(), "anon_test", r.URL.Query().Get("tab_id"))
		ws.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/stream?tab_id=tab-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

// readUntil reads events until match returns true.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	for {
		var ev Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if match(ev) {
			return ev
		}
	}
}

func isMessage(content string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Type == EventMessage && ev.Message != nil && ev.Message.Content == content
	}
}

func TestStreamDeliversTurns(t *testing.T) {
	srv, reg := newStreamServer(t)
	conn, ctx := dial(t, srv)

	first := readUntil(t, ctx, conn, func(ev Event) bool { return ev.Type == EventSnapshot })
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, domain.PhaseCollectingYear, first.Snapshot.Phase)
	assert.Equal(t, 1, reg.Len())

	if len(first.Snapshot.Messages) == 0 {
		readUntil(t, ctx, conn, func(ev Event) bool {
			return ev.Type == EventMessage && ev.Message != nil && strings.HasSuffix(ev.Message.Content, "What year are you?")
		})
	}

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: FrameOption, Content: "Junior"}))
	readUntil(t, ctx, conn, isMessage("Junior"))
	semester := readUntil(t, ctx, conn, isMessage("Great! What semester are you planning for?"))
	assert.Equal(t, []string{"Fall 2026", "Spring 2027"}, semester.Message.Options)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: FramePing}))
	readUntil(t, ctx, conn, func(ev Event) bool { return ev.Type == EventPong })
}

func TestStreamNewChatAndReference(t *testing.T) {
	srv, _ := newStreamServer(t)
	conn, ctx := dial(t, srv)
	snap := readUntil(t, ctx, conn, func(ev Event) bool { return ev.Type == EventSnapshot })
	oldSession := snap.SessionID

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: FrameNewChat}))
	reset := readUntil(t, ctx, conn, func(ev Event) bool { return ev.Type == EventReset })
	assert.NotEqual(t, oldSession, reset.SessionID)

	require.NoError(t, wsjson.Write(ctx, conn, clientFrame{Type: "bogus"}))
	errEv := readUntil(t, ctx, conn, func(ev Event) bool { return ev.Type == EventError })
	assert.Equal(t, "unknown_frame_type", errEv.Error)
}
