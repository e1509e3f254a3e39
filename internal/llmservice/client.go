package llmservice

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"ragkit/internal/config"
	"ragkit/internal/models"
)

// GenerateContent runs one chat completion against an OpenAI-compatible
// endpoint.
func GenerateContent(ctx context.Context, llmConfig *config.LLMConfig, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("model", llmConfig.Model).Msg("generating content")
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, models.NewProviderError("llm", err)
	}

	var res *llms.ContentResponse
	if len(tools) > 0 {
		res, err = llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	} else {
		res, err = llm.GenerateContent(ctx, messages)
	}
	if err != nil {
		return nil, models.NewProviderError("llm", err)
	}
	return res, nil
}

// GeneratePrompt sends a single human prompt and returns the text of
// the first choice.
func GeneratePrompt(ctx context.Context, llmConfig *config.LLMConfig, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	res, err := GenerateContent(ctx, llmConfig, nil, messages)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", models.NewProviderError("llm", errors.New("empty response"))
	}
	return res.Choices[0].Content, nil
}
