package insights

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// ModelClient is the single text-generation operation the briefing
// needs. Kept narrow so tests can supply a canned implementation.
type ModelClient interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You are an expert insurance risk analyst. Respond only with valid JSON."

// sdkClient implements ModelClient using the official anthropic-sdk-go.
type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a ModelClient backed by the Anthropic
// messages API.
func NewAnthropicClient(apiKey, model string, maxTokens int64) ModelClient {
	return &sdkClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *sdkClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "insights: create message")
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", eris.New("insights: response contained no text block")
}
