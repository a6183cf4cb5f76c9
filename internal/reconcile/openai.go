package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You reconcile UI component source files.
You receive the originally installed version (BASE), the developer's customized copy (LOCAL)
and the newest release (UPSTREAM), plus the line ranges where LOCAL and UPSTREAM conflict.
Produce one file that keeps every LOCAL customization and adopts every UPSTREAM improvement.
Reply with the complete merged file inside a single fenced code block and nothing else.
If the changes cannot be combined safely, reply with a single line starting with "DECLINE:" followed by the reason.`

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*\n(.*?)```")

// OpenAIConfig configures an OpenAI-compatible chat completion provider.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// OpenAIProvider asks a chat completion model to merge the conflicting
// texts.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIProvider creates a provider. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("AI reconciliation requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Reconcile implements Provider.
func (p *OpenAIProvider) Reconcile(ctx context.Context, req Request) (Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("chat completion returned no choices")
	}
	return ParseReply(resp.Choices[0].Message.Content)
}

// BuildPrompt renders the user message for a reconciliation request.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Component: %s\nFile type: %s\n\n", req.ComponentName, req.FileType)

	sb.WriteString("Conflicting regions:\n")
	for i, r := range req.Regions {
		fmt.Fprintf(&sb, "%d. BASE %s, LOCAL %s, UPSTREAM %s\n", i+1, r.Base, r.Local, r.Upstream)
	}

	writeBlock(&sb, "BASE", req.FileType, req.BaseText)
	writeBlock(&sb, "LOCAL", req.FileType, req.LocalText)
	writeBlock(&sb, "UPSTREAM", req.FileType, req.UpstreamText)
	return sb.String()
}

func writeBlock(sb *strings.Builder, label, fileType, text string) {
	fmt.Fprintf(sb, "\n%s:\n```%s\n%s", label, fileType, text)
	if !strings.HasSuffix(text, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
}

// ParseReply extracts the merged file from a model reply.
func ParseReply(content string) (Response, error) {
	trimmed := strings.TrimSpace(content)
	if reason, ok := strings.CutPrefix(trimmed, "DECLINE:"); ok {
		return Response{Declined: true, Reason: strings.TrimSpace(reason)}, nil
	}

	m := fencePattern.FindStringSubmatch(content)
	if m == nil {
		return Response{}, fmt.Errorf("%w: reply has no fenced code block", ErrInvalid)
	}
	return Response{MergedText: m[1]}, nil
}
