package insights

import (
	"context"
	"fmt"
	"strings"

	"content-calendar/internal/model"
	"content-calendar/internal/scoring"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const systemPrompt = "You are an editorial strategist for a technical blog. " +
	"Given recent keyword suggestions, keywords the editors declined with their reasons, " +
	"and what the site already covers, write a short report: patterns in what gets declined, " +
	"gaps worth covering next, and keywords to stop suggesting."

// Input is everything the summarizer sees.
type Input struct {
	Recent   []model.Entry
	Declined []model.Entry
	Existing []Document
}

// Document is a piece of existing site content.
type Document struct {
	Source string
	Title  string
	Text   string
}

// Summarizer turns calendar activity into a free-form report.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

type OpenAISummarizer struct {
	client    openai.Client
	model     string
	maxTokens int64
}

var _ Summarizer = (*OpenAISummarizer)(nil)

func NewOpenAISummarizer(apiKey, model string, opts ...option.RequestOption) *OpenAISummarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAISummarizer{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: 1200,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, in Input) (string, error) {
	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(in)),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(s.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	summary := strings.TrimSpace(response.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return summary, nil
}

func buildPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString("Recent suggestions:\n")
	if len(in.Recent) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range in.Recent {
		sb.WriteString(fmt.Sprintf("- %s [%s, %s", e.Keyword, e.ArticleType, e.Status))
		if e.SearchVolume != nil {
			sb.WriteString(fmt.Sprintf(", volume %d", *e.SearchVolume))
		}
		sb.WriteString(fmt.Sprintf(", difficulty %s", scoring.DifficultyLabel(e.Difficulty)))
		if e.PriorityScore != nil {
			sb.WriteString(fmt.Sprintf(", priority %.0f", *e.PriorityScore))
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nDeclined keywords:\n")
	if len(in.Declined) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range in.Declined {
		reason := "no reason given"
		if e.DeclineReason != nil && *e.DeclineReason != "" {
			reason = *e.DeclineReason
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", e.Keyword, reason))
	}

	sb.WriteString("\nExisting content:\n")
	if len(in.Existing) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, d := range in.Existing {
		sb.WriteString(fmt.Sprintf("- %s", d.Title))
		if d.Source != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", d.Source))
		}
		if d.Text != "" {
			sb.WriteString(": " + d.Text)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
