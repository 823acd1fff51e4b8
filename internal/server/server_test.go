package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/cache"
	"askmom/internal/contact"
	"askmom/internal/core"
	"askmom/internal/guardrails"
	"askmom/internal/orchestrator"
	"askmom/internal/store"
)

const testMasterKey = "sk-test-master"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	orch := orchestrator.New(store.NewMemory(), guardrails.New(guardrails.DefaultConfig()),
		contact.NewBuilder(""), nil, cache.NewLocalCache(0), orchestrator.Config{})
	return New(orch, &Config{MasterKey: testMasterKey, MetricsEnabled: true})
}

func doJSON(t *testing.T, srv *Server, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testMasterKey)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsIsPublic(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAskRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/ask", `{"user_id":"u1","text":"hi"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"user_id":"u1","text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAskRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/ask", `{"user_id":"u1","text":"hello there"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply core.StructuredReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.NotEmpty(t, reply.ConversationID)
	assert.NotEmpty(t, reply.Summary)
	assert.Equal(t, core.RiskLow, reply.RiskLevel)
	assert.Equal(t, "stub", reply.Model)
}

func TestAskValidationError(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/ask", `{"user_id":"u1","text":"  "}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "validation_error", payload.Error.Type)
	assert.NotEmpty(t, payload.Error.Message)
}

func TestConversationReadSurface(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/ask", `{"user_id":"u1","text":"my printer is offline"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply core.StructuredReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))

	rec = doJSON(t, srv, http.MethodGet, "/v1/conversations?user_id=u1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Conversations []core.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, reply.ConversationID, list.Conversations[0].ID)

	rec = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+reply.ConversationID+"?user_id=u1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var show struct {
		Conversation core.Conversation    `json:"conversation"`
		Turns        []core.Turn          `json:"turns"`
		LatestReply  *core.StructuredReply `json:"latest_reply"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &show))
	assert.Len(t, show.Turns, 2)
	assert.Equal(t, core.RoleUser, show.Turns[0].Role)
	assert.Equal(t, core.RoleAssistant, show.Turns[1].Role)
	require.NotNil(t, show.LatestReply)
	assert.Equal(t, reply.Summary, show.LatestReply.Summary)

	// Another user cannot see the conversation.
	rec = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+reply.ConversationID+"?user_id=u2", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationListRequiresUserID(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/v1/conversations", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactDraftEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/ask", `{"user_id":"u1","text":"my wifi keeps dropping"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply core.StructuredReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))

	rec = doJSON(t, srv, http.MethodPost,
		"/v1/conversations/"+reply.ConversationID+"/contact-draft",
		`{"risk_level":"high"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		ContactDraft core.ContactDraft `json:"contact_draft"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload.ContactDraft.EmailSubject, "Possible scam")
	assert.NotEmpty(t, payload.ContactDraft.SMSBody)

	rec = doJSON(t, srv, http.MethodPost, "/v1/conversations/missing/contact-draft", `{}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
