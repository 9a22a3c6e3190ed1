package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	openai "github.com/sashabaranov/go-openai"
)

// GeneratedQuestion is one multiple-choice question produced by the model.
type GeneratedQuestion struct {
	Content     string   `json:"content"`
	Options     []string `json:"options"`
	CorrectIdx  int      `json:"correct_idx"`
	Explanation string   `json:"explanation"`
}

type questionBatch struct {
	Questions []GeneratedQuestion `json:"questions"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// New creates a new LLM client. baseURL may point at any OpenAI-compatible
// endpoint; when empty the official API is used.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		log:   log.With().Str("component", "llm").Logger(),
	}
}

// GenerateQuestions asks the model for count multiple-choice questions about
// the given source document. previous carries the stems of questions already
// generated in earlier batches so the model avoids repeating itself.
func (c *Client) GenerateQuestions(ctx context.Context, document string, count int, language, difficulty string, previous []string) ([]GeneratedQuestion, error) {
	systemPrompt := buildGenerationPrompt(count, language, difficulty, previous)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: document},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Int("requested", count).Int("raw_len", len(raw)).Msg("LLM batch received")

	var batch questionBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	return batch.Questions, nil
}

func buildGenerationPrompt(count int, language, difficulty string, previous []string) string {
	var sb strings.Builder
	sb.WriteString("You are an exam author. Read the document the user provides and write ")
	sb.WriteString(fmt.Sprintf("%d multiple-choice questions about it.\n\n", count))

	sb.WriteString("RULES:\n")
	sb.WriteString("- Every question has exactly 4 answer options.\n")
	sb.WriteString("- correct_idx is the zero-based index of the single correct option.\n")
	sb.WriteString("- Base every question strictly on the document; never invent facts.\n")
	sb.WriteString("- Include a one-sentence explanation of the correct answer.\n")
	if language != "" {
		sb.WriteString(fmt.Sprintf("- Write questions, options and explanations in %s.\n", language))
	}
	if difficulty != "" {
		sb.WriteString(fmt.Sprintf("- Target difficulty: %s.\n", difficulty))
	}

	if len(previous) > 0 {
		sb.WriteString("\nQuestions already generated, do NOT repeat or rephrase them:\n")
		for _, p := range previous {
			sb.WriteString("- " + p + "\n")
		}
	}

	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"questions": [{"content": "<question text>", "options": ["<a>", "<b>", "<c>", "<d>"], "correct_idx": <0-3>, "explanation": "<why>"}]}`)
	sb.WriteString("\n")

	return sb.String()
}
