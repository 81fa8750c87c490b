// Package services – ChatService
//
// This file implements the LLM chat assistant. The model is offered one
// function tool, get_inferred_sales, backed by the analytics layer. The
// exchange is bounded to a single tool round-trip: ask the model, execute
// any tool calls it made, send the outputs back, and return the final text.
// Unknown tool names are answered with an error payload so the model can
// recover in its reply.
package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// chatSystemPrompt frames every conversation. Sales wording must carry the
// inference caveat.
const chatSystemPrompt = `You are an inventory assistant for a retail business.
- "Sales" are inferred from net inventory decreases (QOH deltas), not transactions.
- Use the provided tool to fetch authoritative data.
- If the user asks for "sales today", "what sold today", or similar, call get_inferred_sales with scope=today.
- Provide a concise, human-readable answer including totals and a short SKU list.
- Always include the disclaimer if you mention "sales".`

const toolGetInferredSales = "get_inferred_sales"

// ChatCompleter is the slice of the OpenAI client the assistant needs.
// *openai.Client satisfies it; tests substitute a scripted fake.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatService answers free-form questions about inventory movement.
type ChatService struct {
	// Client is the chat completion backend; nil disables the assistant.
	Client ChatCompleter
	// Model is the completion model ID.
	Model string
	// Analytics backs the data tool.
	Analytics *AnalyticsService
}

// NewChatService constructs a ChatService. Pass a nil client when no API
// key is configured; Reply will then return ErrChatDisabled.
func NewChatService(client ChatCompleter, model string, analytics *AnalyticsService) *ChatService {
	return &ChatService{Client: client, Model: model, Analytics: analytics}
}

// salesToolArgs mirrors the tool's JSON parameter schema.
type salesToolArgs struct {
	Scope       string  `json:"scope"`
	Hours       int     `json:"hours"`
	Limit       int     `json:"limit"`
	MinAbsDelta float64 `json:"min_abs_delta"`
}

// Reply answers one user message. At most one tool round-trip is made; the
// model's final text comes back verbatim.
func (s *ChatService) Reply(ctx context.Context, message string) (string, error) {
	if s.Client == nil {
		return "", ErrChatDisabled
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}

	first, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: messages,
		Tools:    s.tools(),
	})
	if err != nil {
		return "", err
	}
	if len(first.Choices) == 0 {
		return "(no output)", nil
	}

	assistant := first.Choices[0].Message
	if len(assistant.ToolCalls) == 0 {
		return textOrPlaceholder(assistant.Content), nil
	}

	// Execute the requested tools and hand the outputs back for the final
	// answer. One round only.
	messages = append(messages, assistant)
	for _, call := range assistant.ToolCalls {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    s.runTool(ctx, call),
		})
	}

	second, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: messages,
		Tools:    s.tools(),
	})
	if err != nil {
		return "", err
	}
	if len(second.Choices) == 0 {
		return "(no output)", nil
	}
	return textOrPlaceholder(second.Choices[0].Message.Content), nil
}

// tools declares the function tool surface offered to the model.
func (s *ChatService) tools() []openai.Tool {
	return []openai.Tool{{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolGetInferredSales,
			Description: "Get inferred sales (inventory decreases) and summary for a time window.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"scope": {"type": "string", "enum": ["today", "hours"]},
					"hours": {"type": "integer", "minimum": 1, "maximum": 168},
					"limit": {"type": "integer", "minimum": 1, "maximum": 200},
					"min_abs_delta": {"type": "number", "minimum": 0}
				},
				"required": ["scope"],
				"additionalProperties": false
			}`),
		},
	}}
}

// runTool executes one tool call and serializes its result for the model.
// Failures become error payloads rather than aborting the exchange.
func (s *ChatService) runTool(ctx context.Context, call openai.ToolCall) string {
	payload, err := s.dispatch(ctx, call)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Function.Name).Msg("chat tool failed")
		payload = map[string]any{"error": err.Error()}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(out)
}

func (s *ChatService) dispatch(ctx context.Context, call openai.ToolCall) (any, error) {
	if call.Function.Name != toolGetInferredSales {
		return map[string]any{"error": "Unknown tool: " + call.Function.Name}, nil
	}

	args := salesToolArgs{Scope: "today", Hours: 4, Limit: 20}
	if raw := call.Function.Arguments; raw != "" {
		// Malformed arguments fall back to the defaults.
		_ = json.Unmarshal([]byte(raw), &args)
	}
	if args.Scope != "today" && args.Scope != "hours" {
		args.Scope = "today"
	}

	minAbs := ""
	if args.MinAbsDelta > 0 {
		b, _ := json.Marshal(args.MinAbsDelta)
		minAbs = string(b)
	}

	sales, err := s.Analytics.InventoryChanges(ctx, ChangesParams{
		Mode:        "sales",
		Scope:       args.Scope,
		Hours:       args.Hours,
		Limit:       args.Limit,
		MinAbsDelta: minAbs,
	})
	if err != nil {
		return nil, err
	}
	summary, err := s.Analytics.DeltaSummary(ctx, args.Scope, args.Hours, minAbs)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"scope":   args.Scope,
		"summary": summary,
		"sales":   sales,
	}, nil
}

func textOrPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no output)"
	}
	return s
}
