package narrative

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

type OpenAIOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	SummaryMaxTokens  int
	InsightsMaxTokens int
	// Temperature 0 asks for the most deterministic output.
	Temperature float32
	TopP        float32
}

// OpenAI generates the narrative with a chat completion model.
type OpenAI struct {
	cli  *openai.Client
	opts OpenAIOptions
	log  logrus.FieldLogger
}

func NewOpenAI(opts OpenAIOptions, log logrus.FieldLogger) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = 300
	}
	if opts.InsightsMaxTokens <= 0 {
		opts.InsightsMaxTokens = 400
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OpenAI{cli: openai.NewClientWithConfig(cfg), opts: opts, log: log}
}

func (o *OpenAI) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// the client omits a zero temperature, which the API reads as its default
	temp := o.opts.Temperature
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	resp, err := o.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temp,
		TopP:        o.opts.TopP,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	o.log.WithFields(logrus.Fields{
		"model":             o.opts.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("chat completion")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Summarize(ctx context.Context, transcript string) (string, error) {
	out, err := o.complete(ctx, summaryPrompt(transcript), o.opts.SummaryMaxTokens)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

func (o *OpenAI) ExtractInsights(ctx context.Context, transcript string) (string, error) {
	out, err := o.complete(ctx, insightsPrompt(transcript), o.opts.InsightsMaxTokens)
	if err != nil {
		return "", fmt.Errorf("extract insights: %w", err)
	}
	return out, nil
}
