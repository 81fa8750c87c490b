package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// scriptedCompleter replays canned completions and records every request.
type scriptedCompleter struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (c *scriptedCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	var resp openai.ChatCompletionResponse
	if i < len(c.responses) {
		resp = c.responses[i]
	}
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return resp, err
}

func textResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text},
	}}}
}

func toolCallResponse(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   id,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func newChatService(t *testing.T, c ChatCompleter) *ChatService {
	t.Helper()
	db := newServicesDB(t)
	analytics := newAnalytics(db, time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC))
	return NewChatService(c, "gpt-4o-mini", analytics)
}

func TestReply_PlainText(t *testing.T) {
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("Hello!")}}
	svc := newChatService(t, c)

	out, err := svc.Reply(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "Hello!" {
		t.Fatalf("unexpected reply: %q", out)
	}
	if len(c.requests) != 1 {
		t.Fatalf("expected a single completion, got %d", len(c.requests))
	}

	req := c.requests[0]
	if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem || req.Messages[1].Content != "hi" {
		t.Fatalf("prompt framing wrong: %+v", req.Messages)
	}
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != toolGetInferredSales {
		t.Fatalf("tool surface wrong: %+v", req.Tools)
	}
}

func TestReply_ToolRoundTrip(t *testing.T) {
	db := newServicesDB(t)
	analytics := newAnalytics(db, time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC))
	seedRunWithDelta(t, db, time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC), "A", "-3")

	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", toolGetInferredSales, `{"scope":"today","limit":10}`),
		textResponse("3 units of A sold today."),
	}}
	svc := NewChatService(c, "gpt-4o-mini", analytics)

	out, err := svc.Reply(context.Background(), "what sold today?")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "3 units of A sold today." {
		t.Fatalf("unexpected reply: %q", out)
	}
	if len(c.requests) != 2 {
		t.Fatalf("expected exactly one tool round-trip, got %d requests", len(c.requests))
	}

	second := c.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != openai.ChatMessageRoleTool || last.ToolCallID != "call_1" {
		t.Fatalf("tool output not threaded back: %+v", last)
	}

	var payload struct {
		Scope   string          `json:"scope"`
		Sales   *ChangesReport  `json:"sales"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal([]byte(last.Content), &payload); err != nil {
		t.Fatalf("tool payload not JSON: %v\n%s", err, last.Content)
	}
	if payload.Scope != "today" || payload.Sales == nil || payload.Sales.Count != 1 {
		t.Fatalf("tool payload wrong: %s", last.Content)
	}
	if payload.Sales.Data[0].SKU != "A" {
		t.Fatalf("expected A in sales payload: %s", last.Content)
	}

	// The assistant's tool-call message precedes the tool output.
	prev := second.Messages[len(second.Messages)-2]
	if len(prev.ToolCalls) != 1 || prev.ToolCalls[0].ID != "call_1" {
		t.Fatalf("assistant turn not replayed: %+v", prev)
	}
}

func TestReply_UnknownToolBecomesErrorPayload(t *testing.T) {
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_9", "drop_tables", `{}`),
		textResponse("I can't do that."),
	}}
	svc := newChatService(t, c)

	out, err := svc.Reply(context.Background(), "do something odd")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "I can't do that." {
		t.Fatalf("unexpected reply: %q", out)
	}

	last := c.requests[1].Messages[len(c.requests[1].Messages)-1]
	if !strings.Contains(last.Content, "Unknown tool: drop_tables") {
		t.Fatalf("expected error payload, got %s", last.Content)
	}
}

func TestReply_EmptyAnswerGetsPlaceholder(t *testing.T) {
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("   ")}}
	svc := newChatService(t, c)

	out, err := svc.Reply(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "(no output)" {
		t.Fatalf("expected placeholder, got %q", out)
	}
}

func TestReply_InputValidation(t *testing.T) {
	svc := newChatService(t, &scriptedCompleter{})
	if _, err := svc.Reply(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	disabled := newChatService(t, nil)
	if _, err := disabled.Reply(context.Background(), "hi"); !errors.Is(err, ErrChatDisabled) {
		t.Fatalf("expected ErrChatDisabled, got %v", err)
	}
}

func TestReply_BackendErrorSurfaces(t *testing.T) {
	boom := errors.New("upstream unavailable")
	c := &scriptedCompleter{errs: []error{boom}}
	svc := newChatService(t, c)

	if _, err := svc.Reply(context.Background(), "hi"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
