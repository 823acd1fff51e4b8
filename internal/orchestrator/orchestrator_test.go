package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/cache"
	"askmom/internal/contact"
	"askmom/internal/core"
	"askmom/internal/guardrails"
	"askmom/internal/store"
)

type fakeGenerator struct {
	result *core.GenerateResult
	err    error
	calls  int
	last   *core.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req *core.GenerateRequest) (*core.GenerateResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestOrchestrator(t *testing.T, gen core.Generator) (*Orchestrator, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	o := New(mem, guardrails.New(guardrails.DefaultConfig()),
		contact.NewBuilder(""), gen, cache.NewLocalCache(0), Config{})
	return o, mem
}

func TestProcessTurnGreeting(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	reply, err := o.ProcessTurn(context.Background(), AskRequest{UserID: "u1", Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, core.RiskLow, reply.RiskLevel)
	assert.False(t, reply.EscalateSuggested)
	assert.NotEmpty(t, reply.Summary)
	assert.Contains(t, reply.Summary, "?", "greeting should ask a follow-up question")
	assert.NotEmpty(t, reply.ConversationID)
	assert.NotEmpty(t, reply.MessageID)
	assert.Equal(t, "stub", reply.Model)
}

func TestProcessTurnHighRiskEscalates(t *testing.T) {
	o, mem := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{
		UserID: "u1",
		Text:   "I need to buy a gift card to get my refund",
	})
	require.NoError(t, err)

	assert.Equal(t, core.RiskHigh, reply.RiskLevel)
	assert.True(t, reply.EscalateSuggested)
	assert.GreaterOrEqual(t, reply.Confidence, 0.9)
	assert.True(t, reply.ShowContactPanel)
	require.NotNil(t, reply.ContactDraft)
	assert.Contains(t, reply.ContactDraft.EmailSubject, "Possible scam")

	conv, err := mem.GetConversation(ctx, reply.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEscalated, conv.Status)
	assert.Equal(t, core.RiskHigh, conv.RiskLevel)
}

func TestProcessTurnStuckShowsPanelWithoutBlocking(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	first, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: "I don't understand"})
	require.NoError(t, err)
	convID := first.ConversationID

	for i := 0; i < 2; i++ {
		_, err := o.ProcessTurn(ctx, AskRequest{
			UserID: "u1", ConversationID: convID, Text: "I don't understand",
		})
		require.NoError(t, err)
	}

	reply, err := o.ProcessTurn(ctx, AskRequest{
		UserID: "u1", ConversationID: convID, Text: "I don't understand",
	})
	require.NoError(t, err)

	assert.True(t, reply.ShowContactPanel, "stuck user should get the contact panel")
	assert.NotEmpty(t, reply.Summary, "stuck is a soft escalation, replies continue")
	require.NotNil(t, reply.ContactDraft)
	assert.NotEmpty(t, reply.MessageID)
}

func TestProcessTurnRedactsSSN(t *testing.T) {
	o, mem := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{
		UserID: "u1",
		Text:   "my SSN is 123-45-6789 and I am worried",
	})
	require.NoError(t, err)

	turns, err := mem.RecentTurns(ctx, reply.ConversationID, core.TurnFilter{})
	require.NoError(t, err)
	for _, turn := range turns {
		assert.NotContains(t, turn.Text, "123-45-6789")
	}

	arts := mem.Artifacts()
	require.Len(t, arts, 1)
	assert.Contains(t, arts[0].Reasons, core.ReasonSSN)
	assert.NotZero(t, arts[0].Fingerprint)
	assert.Contains(t, arts[0].RedactedContent, "[REDACTED_SSN]")
}

func TestProcessTurnTooLongBlocks(t *testing.T) {
	o, mem := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{
		UserID: "u1",
		Text:   strings.Repeat("a", 2600),
	})
	require.NoError(t, err, "hard blocks still return a structured reply")

	assert.Equal(t, "guardrails", reply.Model)
	assert.NotEmpty(t, reply.Summary)
	assert.False(t, reply.ShowContactPanel)
	assert.Empty(t, reply.MessageID)

	// The user turn is committed, but no assistant turn is.
	turns, err := mem.RecentTurns(ctx, reply.ConversationID, core.TurnFilter{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
}

func TestProcessTurnValidation(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	_, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: "   "})
	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeValidation, oe.Type)

	_, err = o.ProcessTurn(ctx, AskRequest{Text: "hello"})
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeValidation, oe.Type)
}

func TestProcessTurnUnknownConversation(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	_, err := o.ProcessTurn(context.Background(), AskRequest{
		UserID: "u1", ConversationID: "nope", Text: "hello",
	})
	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeNotFound, oe.Type)
}

func TestProcessTurnOwnershipHidden(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: "my printer is offline"})
	require.NoError(t, err)

	_, err = o.ProcessTurn(ctx, AskRequest{
		UserID: "u2", ConversationID: reply.ConversationID, Text: "hello",
	})
	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeNotFound, oe.Type)
}

func TestProcessTurnUsesGeneratorWhenRecommended(t *testing.T) {
	gen := &fakeGenerator{result: &core.GenerateResult{
		RiskLevel:  core.RiskMedium,
		Summary:    "Here is what the model suggests.",
		Steps:      []string{"Open settings.", "Check for updates."},
		Confidence: 0.85,
		Model:      "gpt-4o-mini",
	}}
	o, _ := newTestOrchestrator(t, gen)

	// A long, detailed message makes the stub recommend model help.
	longText := strings.Repeat("my laptop shows a strange window every morning and ", 10)
	reply, err := o.ProcessTurn(context.Background(), AskRequest{UserID: "u1", Text: longText})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "gpt-4o-mini", reply.Model)
	assert.Equal(t, "v5_model", reply.PromptVersion)
	assert.Equal(t, "Here is what the model suggests.", reply.Summary)
	assert.True(t, reply.ModelRecommended)
	assert.Contains(t, reply.ModelReason, "long_message")
	require.NotNil(t, gen.last)
	assert.NotEmpty(t, gen.last.Instructions)
}

func TestProcessTurnHighRiskSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{result: &core.GenerateResult{Summary: "x"}}
	o, _ := newTestOrchestrator(t, gen)

	_, err := o.ProcessTurn(context.Background(), AskRequest{
		UserID: "u1",
		Text:   "they want me to pay with a gift card",
	})
	require.NoError(t, err)
	assert.Zero(t, gen.calls, "rule-handled high-risk turns never call the model")
}

func TestProcessTurnUpstreamFailureNothingPersisted(t *testing.T) {
	gen := &fakeGenerator{err: core.NewUpstreamUnavailableError("model timeout", errors.New("deadline"))}
	o, mem := newTestOrchestrator(t, gen)
	ctx := context.Background()

	longText := strings.Repeat("my laptop shows a strange window every morning and ", 10)
	_, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: longText})

	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeUpstreamUnavailable, oe.Type)

	// The user turn stays committed; no assistant turn is written.
	convs, err := mem.ListConversations(ctx, "u1", "", 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	turns, err := mem.RecentTurns(ctx, convs[0].ID, core.TurnFilter{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
}

func TestProcessTurnDeterministicWithinBucket(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	run := func() *core.StructuredReply {
		mem := store.NewMemory()
		o := New(mem, guardrails.New(guardrails.DefaultConfig()),
			contact.NewBuilder(""), nil, nil, Config{})
		o.now = func() time.Time { return fixed }

		require.NoError(t, mem.CreateConversation(context.Background(), &core.Conversation{
			ID: "c-fixed", UserID: "u1", Status: core.StatusOpen,
			RiskLevel: core.RiskLow, LastMessageAt: fixed, CreatedAt: fixed,
		}))
		reply, err := o.ProcessTurn(context.Background(), AskRequest{
			UserID: "u1", ConversationID: "c-fixed", Text: "my wifi is down",
		})
		require.NoError(t, err)
		return reply
	}

	a, b := run(), run()
	assert.Equal(t, a.Summary, b.Summary)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.PromptVersion, b.PromptVersion)
}

func TestBuildContactDraftStandalone(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: "my printer is offline"})
	require.NoError(t, err)

	draft, err := o.BuildContactDraft(ctx, reply.ConversationID, core.RiskHigh)
	require.NoError(t, err)
	assert.Contains(t, draft.EmailSubject, "Possible scam")
	assert.Contains(t, draft.EmailBody, "printer")

	_, err = o.BuildContactDraft(ctx, "missing", "")
	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeNotFound, oe.Type)
}

func TestLatestReplySnapshot(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{UserID: "u1", Text: "my wifi is down"})
	require.NoError(t, err)

	snap, err := o.LatestReply(ctx, reply.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, reply.Summary, snap.Reply.Summary)
}

func TestFormatAssistantContent(t *testing.T) {
	got := formatAssistantContent("Let's fix it.", []string{"Restart.", "Retry."})
	assert.Equal(t, "Let's fix it.\n\n1. Restart.\n2. Retry.", got)

	assert.Equal(t, "Just a summary.", formatAssistantContent("Just a summary.", nil))
	assert.Equal(t, "Let's take this one step at a time.", formatAssistantContent("  ", nil))
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "my wifi is down", deriveTitle("my wifi is down"))

	long := strings.Repeat("printer trouble ", 10)
	title := deriveTitle(long)
	assert.LessOrEqual(t, len([]rune(title)), titleMaxChars+1)
	assert.True(t, strings.HasSuffix(title, "…"))
}

func TestProcessTurnRiskHintRaisesFloor(t *testing.T) {
	o, mem := newTestOrchestrator(t, nil)
	ctx := context.Background()

	reply, err := o.ProcessTurn(ctx, AskRequest{
		UserID:   "u1",
		Text:     "my printer is offline",
		RiskHint: "high",
	})
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, reply.RiskLevel)

	conv, err := mem.GetConversation(ctx, reply.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, conv.RiskLevel)

	// Unknown hints are ignored; the reply carries the playbook's own level.
	reply, err = o.ProcessTurn(ctx, AskRequest{
		UserID:   "u1",
		Text:     "my printer is offline",
		RiskHint: "bogus",
	})
	require.NoError(t, err)
	assert.Equal(t, core.RiskMedium, reply.RiskLevel)
}
