package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trbui/queryjobs-be/internal/query"
	"github.com/trbui/queryjobs-be/internal/worker/domain"
)

// ChatMessage is one turn of conversation history
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatInput is the parsed input payload of a chat job
type chatInput struct {
	Chats   []ChatMessage  `json:"chats"`
	Targets []query.Target `json:"targets"`
	TopK    int            `json:"top_k"`
}

// Citation points the caller back at the source of one context chunk
type Citation struct {
	Document any    `json:"document,omitempty"`
	Chunk    string `json:"chunk"`
	Page     any    `json:"page,omitempty"`
}

// chatOutput is the serialized result of a completed chat job
type chatOutput struct {
	Answer         string                `json:"answer"`
	Citations      []Citation            `json:"citations"`
	FailedBackends []query.TargetFailure `json:"failed_backends,omitempty"`
}

// executeChatJob runs the chat workflow: fold the conversation, route the
// query through the targeted backends, generate the answer from the
// retrieved context, and build citations.
func (w *Worker) executeChatJob(ctx context.Context, job *domain.Job) ([]byte, error) {
	var input chatInput
	if err := json.Unmarshal([]byte(job.Payload), &input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if len(input.Chats) == 0 {
		return nil, fmt.Errorf("%w: chats must not be empty", domain.ErrInvalidPayload)
	}

	history := foldHistory(input.Chats)

	// The last turn is the question; everything before it is history
	question := history[len(history)-1].Content
	history = history[:len(history)-1]

	if question == "" {
		return nil, fmt.Errorf("%w: last chat message has no content", domain.ErrInvalidPayload)
	}

	decision := query.Decision{Targets: input.Targets}
	if input.TopK > 0 {
		applyTopK(decision.Targets, input.TopK)
	}

	entries, failures, err := w.router.Route(ctx, decision)
	if err != nil {
		return nil, err
	}

	answer, err := w.generator.Generate(ctx, question, history, entries)
	if err != nil {
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	output := chatOutput{
		Answer:         answer,
		Citations:      buildCitations(entries),
		FailedBackends: failures,
	}

	return json.Marshal(output)
}

// foldHistory maps caller-specific participant roles onto the standard
// user role
func foldHistory(chats []ChatMessage) []ChatMessage {
	history := make([]ChatMessage, len(chats))
	for i, msg := range chats {
		role := msg.Role
		if role == "farmer" || role == "extension_officer" {
			role = "user"
		}
		history[i] = ChatMessage{Role: role, Content: msg.Content}
	}
	return history
}

// applyTopK propagates the result-count limit to targets that did not set
// their own
func applyTopK(targets []query.Target, topK int) {
	for i := range targets {
		if targets[i].Args == nil {
			targets[i].Args = map[string]any{}
		}
		if _, ok := targets[i].Args["top_k"]; !ok {
			targets[i].Args["top_k"] = topK
		}
	}
}

// buildCitations derives caller-facing citations from context entry metadata
func buildCitations(entries []query.ContextEntry) []Citation {
	citations := make([]Citation, len(entries))
	for i, entry := range entries {
		citation := Citation{Chunk: entry.Content}

		if doc, ok := entry.Metadata["source"]; ok {
			citation.Document = doc
		} else if title, ok := entry.Metadata["title"]; ok {
			citation.Document = title
		}

		if page, ok := entry.Metadata["page_label"]; ok {
			citation.Page = page
		} else if page, ok := entry.Metadata["page"]; ok {
			citation.Page = page
		}

		citations[i] = citation
	}
	return citations
}
