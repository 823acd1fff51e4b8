package orchestrator

import (
	"askmom/internal/core"
)

const (
	// promptMaxTurns bounds how many history turns the model sees.
	promptMaxTurns = 10

	// promptMaxChars bounds the total character budget of the context
	// window, excluding the instructions.
	promptMaxChars = 4500
)

// buildPrompt assembles the bounded context window for a model call. The
// newest turns win: the window is filled from the most recent turn
// backwards until either the turn cap or the character budget is hit.
// The current user message travels in UserText and is excluded from the
// history portion so the model does not see it twice.
func buildPrompt(instructions string, history []core.Turn, userText string) *core.GenerateRequest {
	// Drop the committed current user turn off the end of the history.
	if n := len(history); n > 0 &&
		history[n-1].Role == core.RoleUser && history[n-1].Text == userText {
		history = history[:n-1]
	}

	budget := promptMaxChars - len(userText)

	var window []core.Turn
	for i := len(history) - 1; i >= 0 && len(window) < promptMaxTurns; i-- {
		t := history[i]
		if len(t.Text) > budget {
			break
		}
		budget -= len(t.Text)
		window = append(window, t)
	}

	// window was collected newest first; restore ascending order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}

	return &core.GenerateRequest{
		Instructions: instructions,
		Turns:        window,
		UserText:     userText,
	}
}
