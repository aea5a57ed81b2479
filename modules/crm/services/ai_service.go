package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/meridianhq/meridian-sdk/modules/crm/domain/catalog"
	"github.com/meridianhq/meridian-sdk/modules/crm/domain/record"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

const assistSystemPrompt = `You are a CRM assistant. Given one record, reply with a JSON object: ` +
	`{"summary": one or two sentences describing the record, ` +
	`"fit_hint": how promising this record looks and why, ` +
	`"next_step": the single most useful follow-up action}.`

// AssistResult is the model's note on one record.
type AssistResult struct {
	Summary  string `json:"summary"`
	FitHint  string `json:"fit_hint,omitempty"`
	NextStep string `json:"next_step,omitempty"`
}

// AIService produces assist notes for records through the OpenAI chat API.
// Without an API key the service reports disabled and the module skips the
// endpoint entirely.
type AIService struct {
	repo    record.Repository
	catalog *catalog.Catalog
	client  *openai.Client
	model   string
}

func NewAIService(repo record.Repository, cat *catalog.Catalog, apiKey string) *AIService {
	svc := &AIService{
		repo:    repo,
		catalog: cat,
		model:   openai.GPT4oMini,
	}
	if apiKey != "" {
		svc.client = openai.NewClient(apiKey)
	}
	return svc
}

// Enabled reports whether an API key was configured.
func (s *AIService) Enabled() bool {
	return s.client != nil
}

func (s *AIService) Assist(ctx context.Context, entityName string, id uuid.UUID) (*AssistResult, error) {
	if err := authorizeAssist(ctx, "run"); err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return nil, errors.New("assist is not configured")
	}
	ent, err := s.catalog.Get(entityName)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := runInTenantTxResult(ctx, func(txCtx context.Context) (record.Record, error) {
		return s.repo.GetByID(txCtx, tenantID, id)
	})
	if err != nil {
		return nil, err
	}
	if rec.Entity() != entityName {
		return nil, fmt.Errorf("id: %s: %w", id, record.ErrNotFound)
	}

	prompt, err := assistPrompt(ent, rec)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.2,
		MaxTokens:   400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: assistSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "assist completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("assist returned no choices")
	}
	return parseAssist(resp.Choices[0].Message.Content), nil
}

// assistPrompt lays the record out for the model, display fields first so
// the identifying values lead.
func assistPrompt(ent catalog.Entity, rec record.Record) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity: %s\n", ent.Name)
	for _, name := range ent.DisplayFields {
		if v, ok := rec.Field(name); ok {
			fmt.Fprintf(&b, "%s: %s\n", name, exportValue(v))
		}
	}
	fields, err := json.Marshal(rec.Fields())
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "All fields: %s\n", fields)
	if tags := rec.Tags(); len(tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(&b, "Created: %s\n", rec.CreatedAt().Format(time.RFC3339))
	return b.String(), nil
}

// parseAssist tolerates non-JSON replies by treating the whole text as the
// summary.
func parseAssist(content string) *AssistResult {
	var out AssistResult
	if err := json.Unmarshal([]byte(content), &out); err != nil || out.Summary == "" {
		return &AssistResult{Summary: strings.TrimSpace(content)}
	}
	return &out
}
