// Package orchestrator drives the per-turn pipeline: redact, classify,
// guardrail-check, then route to the stub engine or the external model and
// persist the exchange. It is the only writer of conversation state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"askmom/internal/cache"
	"askmom/internal/contact"
	"askmom/internal/core"
	"askmom/internal/guardrails"
	"askmom/internal/metrics"
	"askmom/internal/redact"
	"askmom/internal/risk"
	"askmom/internal/stub"
)

const (
	// historyLimit bounds the turn history read per request. It must cover
	// the largest guardrail window (the low-risk model-call budget).
	historyLimit = 120

	// titleMaxChars bounds the auto-derived conversation title.
	titleMaxChars = 60

	// seedBucketSeconds is the coarse time bucket driving reply variation.
	// Within one bucket, identical inputs produce identical replies.
	seedBucketSeconds = 600

	defaultInstructions = "You are a patient tech helper for an elderly user. " +
		"Reply with JSON: risk_level, title, summary, steps (max 6, one action each), " +
		"escalate_suggested, confidence. Plain language, no jargon, never ask for " +
		"passwords, card numbers, or codes."
)

// Config tunes the orchestrator's model usage.
type Config struct {
	// Instructions is the system prompt sent to the external model.
	Instructions string `yaml:"instructions"`

	// ModelTimeout bounds a single external model call.
	ModelTimeout time.Duration `yaml:"model_timeout"`
}

// AskRequest is the input to ProcessTurn. An empty ConversationID starts a
// new conversation.
type AskRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`

	// RiskHint optionally raises the turn's risk floor. Unknown values are
	// ignored; the classifier can still raise the level further.
	RiskHint string `json:"risk_hint,omitempty"`
}

// Orchestrator wires the pipeline components together. The generator and
// snapshot cache are optional; everything else is required.
type Orchestrator struct {
	store     core.ConversationStore
	policy    *guardrails.Policy
	contacts  *contact.Builder
	generator core.Generator
	snapshots cache.Cache
	sweeper   *Sweeper
	cfg       Config
	now       func() time.Time
}

// New creates an Orchestrator. Pass nil for generator to run stub-only and
// nil for snapshots to skip reply caching.
func New(store core.ConversationStore, policy *guardrails.Policy, contacts *contact.Builder,
	generator core.Generator, snapshots cache.Cache, cfg Config) *Orchestrator {

	if cfg.Instructions == "" {
		cfg.Instructions = defaultInstructions
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 15 * time.Second
	}

	return &Orchestrator{
		store:     store,
		policy:    policy,
		contacts:  contacts,
		generator: generator,
		snapshots: snapshots,
		sweeper:   NewSweeper(store),
		cfg:       cfg,
		now:       time.Now,
	}
}

// ProcessTurn is the sole write entry point. It appends the (redacted) user
// turn, evaluates guardrails against the committed history, and produces a
// structured reply. Hard blocks still return a reply; only invalid input,
// missing conversations, and upstream model failures return errors.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req AskRequest) (*core.StructuredReply, error) {
	started := o.now()
	defer func() {
		metrics.TurnDuration.Observe(time.Since(started).Seconds())
	}()

	text := strings.TrimSpace(req.Text)
	if req.UserID == "" {
		metrics.TurnsProcessed.WithLabelValues("rejected").Inc()
		return nil, core.NewValidationError("user_id is required")
	}
	if text == "" {
		metrics.TurnsProcessed.WithLabelValues("rejected").Inc()
		return nil, core.NewValidationError("message text is required")
	}

	conv, err := o.resolveConversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		metrics.TurnsProcessed.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// Redaction happens before anything touches the store; raw digits are
	// never persisted or logged.
	scan := redact.Scan(text)
	cleanText := scan.CleanText

	turnRisk := risk.Classify(cleanText)
	if req.RiskHint != "" {
		turnRisk = turnRisk.Max(core.ParseRiskLevel(req.RiskHint, core.RiskLow))
	}
	convRisk := conv.RiskLevel.Max(turnRisk)

	userTurn := &core.Turn{
		ConversationID: conv.ID,
		Role:           core.RoleUser,
		Text:           cleanText,
		RiskLevel:      turnRisk,
		CreatedAt:      o.now().UTC(),
	}
	turnID, err := o.store.AppendTurn(ctx, userTurn)
	if err != nil {
		return nil, fmt.Errorf("failed to append user turn: %w", err)
	}

	if scan.WasRedacted {
		o.recordRedaction(ctx, conv.ID, turnID, scan)
	}

	// The guardrail read happens after the user turn is committed, so the
	// current message counts itself exactly once in every window.
	history, err := o.store.RecentTurns(ctx, conv.ID, core.TurnFilter{Limit: historyLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to read turn history: %w", err)
	}

	decision := o.policy.Check(history, cleanText, convRisk)
	if decision.Block {
		reply := o.blockedReply(conv, cleanText, convRisk, decision)
		o.finishTurn(ctx, conv, cleanText, convRisk, reply, false)
		metrics.GuardrailBlocks.WithLabelValues(string(decision.Reason)).Inc()
		metrics.TurnsProcessed.WithLabelValues("blocked").Inc()
		return reply, nil
	}
	if decision.ShowContactPanel {
		metrics.GuardrailBlocks.WithLabelValues(string(decision.Reason)).Inc()
	}

	reply := o.routeReply(req.UserID, conv.ID, text)
	// A panel redirect means the user needs a human, not a cleverer model
	// answer; the stub reply stands.
	if o.generator != nil && reply.ModelRecommended && !decision.ShowContactPanel {
		modelReply, err := o.generateReply(ctx, cleanText, history, reply)
		if err != nil {
			metrics.TurnsProcessed.WithLabelValues("upstream_failed").Inc()
			return nil, err
		}
		reply = modelReply
	}

	convRisk = convRisk.Max(reply.RiskLevel)
	reply.ConversationID = conv.ID
	reply.RiskLevel = convRisk
	reply.ShowContactPanel = decision.ShowContactPanel || reply.EscalateSuggested
	if reply.ShowContactPanel {
		draft := o.contacts.Build(conv.Title, cleanText, convRisk)
		reply.ContactDraft = &draft
	}

	assistantTurn := &core.Turn{
		ConversationID: conv.ID,
		Role:           core.RoleAssistant,
		Text:           formatAssistantContent(reply.Summary, reply.Steps),
		RiskLevel:      convRisk,
		CreatedAt:      o.now().UTC(),
	}
	messageID, err := o.store.AppendTurn(ctx, assistantTurn)
	if err != nil {
		return nil, fmt.Errorf("failed to append assistant turn: %w", err)
	}
	reply.MessageID = messageID

	o.finishTurn(ctx, conv, cleanText, convRisk, reply, reply.EscalateSuggested)
	metrics.TurnsProcessed.WithLabelValues("replied").Inc()
	return reply, nil
}

// BuildContactDraft rebuilds a handoff draft on demand, using the
// conversation's title and most recent user message. The caller may pass a
// risk override; an empty value uses the conversation's stored level.
func (o *Orchestrator) BuildContactDraft(ctx context.Context, conversationID string, riskLevel core.RiskLevel) (core.ContactDraft, error) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return core.ContactDraft{}, err
	}

	if riskLevel == "" {
		riskLevel = conv.RiskLevel
	}

	lastUser := ""
	turns, err := o.store.RecentTurns(ctx, conversationID, core.TurnFilter{Role: core.RoleUser, Limit: 1})
	if err != nil {
		return core.ContactDraft{}, fmt.Errorf("failed to read last user turn: %w", err)
	}
	if len(turns) > 0 {
		lastUser = turns[len(turns)-1].Text
	}

	return o.contacts.Build(conv.Title, lastUser, riskLevel), nil
}

// GetConversation returns a conversation owned by the user, with its turns
// in ascending order.
func (o *Orchestrator) GetConversation(ctx context.Context, userID, conversationID string) (*core.Conversation, []core.Turn, error) {
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv.UserID != userID {
		return nil, nil, core.NewNotFoundError("conversation not found: " + conversationID)
	}

	turns, err := o.store.RecentTurns(ctx, conversationID, core.TurnFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return conv, turns, nil
}

// ListConversations returns a user's conversations, optionally filtered by
// a turn-text search query.
func (o *Orchestrator) ListConversations(ctx context.Context, userID, query string, limit int) ([]core.Conversation, error) {
	return o.store.ListConversations(ctx, userID, query, limit)
}

// LatestReply returns the cached snapshot of a conversation's most recent
// reply, or nil when no snapshot exists.
func (o *Orchestrator) LatestReply(ctx context.Context, conversationID string) (*cache.ReplySnapshot, error) {
	if o.snapshots == nil {
		return nil, nil
	}
	return o.snapshots.Get(ctx, conversationID)
}

// Sweeper exposes the retention sweeper for daemon wiring.
func (o *Orchestrator) Sweeper() *Sweeper {
	return o.sweeper
}

func (o *Orchestrator) resolveConversation(ctx context.Context, userID, conversationID string) (*core.Conversation, error) {
	if conversationID == "" {
		now := o.now().UTC()
		conv := &core.Conversation{
			UserID:        userID,
			Status:        core.StatusOpen,
			RiskLevel:     core.RiskLow,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		if err := o.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatches read as not-found so conversation IDs leak
	// nothing across users.
	if conv.UserID != userID {
		return nil, core.NewNotFoundError("conversation not found: " + conversationID)
	}
	return conv, nil
}

func (o *Orchestrator) recordRedaction(ctx context.Context, conversationID, turnID string, scan core.RedactionResult) {
	for _, reason := range scan.Reasons {
		metrics.Redactions.WithLabelValues(string(reason)).Inc()
	}

	artifact := &core.BlockedArtifact{
		ConversationID:  conversationID,
		TurnID:          turnID,
		Reasons:         scan.Reasons,
		RedactedContent: scan.CleanText,
		Fingerprint:     xxhash.Sum64String(scan.CleanText),
		CreatedAt:       o.now().UTC(),
	}
	if err := o.store.RecordRedaction(ctx, artifact); err != nil {
		// The turn itself is already safely redacted; losing the artifact
		// record is worth a warning, not a failed reply.
		slog.Warn("failed to record redaction artifact",
			"conversation_id", conversationID, "error", err)
	}
}

func (o *Orchestrator) routeReply(userID, conversationID, rawText string) *core.StructuredReply {
	seed := stub.Seed{
		TimeBucket:     o.now().Unix() / seedBucketSeconds,
		UserID:         userID,
		ConversationID: conversationID,
		RawText:        rawText,
	}
	return stub.Route(rawText, seed)
}

func (o *Orchestrator) generateReply(ctx context.Context, cleanText string, history []core.Turn, stubReply *core.StructuredReply) (*core.StructuredReply, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.ModelTimeout)
	defer cancel()

	req := buildPrompt(o.cfg.Instructions, history, cleanText)
	result, err := o.generator.Generate(genCtx, req)
	if err != nil {
		metrics.ModelCalls.WithLabelValues(modelLabel(result), "error").Inc()
		return nil, err
	}
	metrics.ModelCalls.WithLabelValues(result.Model, "ok").Inc()

	steps := result.Steps
	if len(steps) > 6 {
		steps = steps[:6]
	}

	return &core.StructuredReply{
		RiskLevel:         result.RiskLevel,
		Summary:           result.Summary,
		Steps:             steps,
		EscalateSuggested: result.EscalateSuggested,
		Confidence:        core.ClampConfidence(result.Confidence),
		Model:             result.Model,
		PromptVersion:     "v5_model",
		ModelRecommended:  stubReply.ModelRecommended,
		ModelReason:       stubReply.ModelReason,
	}, nil
}

func modelLabel(result *core.GenerateResult) string {
	if result != nil && result.Model != "" {
		return result.Model
	}
	return "unknown"
}

// blockedReply is the structured explanation returned on a hard block. The
// model is never invoked and no assistant turn is persisted.
func (o *Orchestrator) blockedReply(conv *core.Conversation, cleanText string, convRisk core.RiskLevel, decision core.GuardrailDecision) *core.StructuredReply {
	reply := &core.StructuredReply{
		ConversationID:   conv.ID,
		RiskLevel:        convRisk,
		Summary:          decision.FriendlyMessage,
		Confidence:       1.0,
		Model:            "guardrails",
		PromptVersion:    "v1_guardrail",
		ShowContactPanel: decision.ShowContactPanel,
	}
	if decision.ShowContactPanel {
		draft := o.contacts.Build(conv.Title, cleanText, convRisk)
		reply.ContactDraft = &draft
	}
	return reply
}

// finishTurn updates the conversation summary record, caches the reply
// snapshot, and kicks the throttled retention sweep.
func (o *Orchestrator) finishTurn(ctx context.Context, conv *core.Conversation, cleanText string, convRisk core.RiskLevel, reply *core.StructuredReply, escalated bool) {
	update := &core.Conversation{
		ID:            conv.ID,
		RiskLevel:     convRisk,
		LastMessageAt: o.now().UTC(),
	}
	if conv.Title == "" {
		update.Title = deriveTitle(cleanText)
	}
	if escalated && conv.Status == core.StatusOpen {
		update.Status = core.StatusEscalated
	}
	if err := o.store.UpdateConversationSummary(ctx, update); err != nil {
		slog.Warn("failed to update conversation summary",
			"conversation_id", conv.ID, "error", err)
	}

	if o.snapshots != nil && reply != nil {
		snap := &cache.ReplySnapshot{Reply: *reply, CachedAt: o.now().UTC()}
		if err := o.snapshots.Set(ctx, conv.ID, snap); err != nil {
			slog.Warn("failed to cache reply snapshot",
				"conversation_id", conv.ID, "error", err)
		}
	}

	o.sweeper.MaybeSweep(ctx, o.now())
}

// formatAssistantContent renders the persisted assistant turn text as the
// summary followed by a numbered step list.
func formatAssistantContent(summary string, steps []string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = "Let's take this one step at a time."
	}
	if len(steps) == 0 {
		return summary
	}

	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n")
	for i, step := range steps {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, step))
	}
	return b.String()
}

// deriveTitle derives a conversation title from its first user message.
func deriveTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= titleMaxChars {
		return text
	}
	cut := text[:titleMaxChars]
	if idx := strings.LastIndex(cut, " "); idx > titleMaxChars/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
