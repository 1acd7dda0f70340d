// Package generation calls the hosted text generation model.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const anthropicVersion = "bedrock-2023-05-31"

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("empty response content from model")

// Request is one prompt sent to the model.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds the Bedrock client settings.
type Config struct {
	Region  string
	ModelID string
	Logger  *slog.Logger
}

// BedrockClient sends Anthropic messages requests through InvokeModel.
type BedrockClient struct {
	api     InvokeModelAPI
	modelID string
	logger  *slog.Logger
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockClient loads AWS credentials from the default chain. Requests
// get at most two attempts with adaptive retry.
func NewBedrockClient(ctx context.Context, cfg Config) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(2),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewBedrockClientWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID, cfg.Logger), nil
}

// NewBedrockClientWithAPI wraps an existing runtime client.
func NewBedrockClientWithAPI(api InvokeModelAPI, modelID string, logger *slog.Logger) *BedrockClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockClient{api: api, modelID: modelID, logger: logger}
}

// ModelID returns the configured model identifier.
func (c *BedrockClient) ModelID() string {
	return c.modelID
}

// Generate sends the prompt and returns the concatenated text blocks.
func (c *BedrockClient) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		Messages:         []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	start := time.Now()
	c.logger.Debug("Invoking generation model",
		slog.String("model_id", c.modelID),
		slog.Int("prompt_chars", len(req.Prompt)),
		slog.Int("max_tokens", req.MaxTokens),
	)

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke model %s: %w", c.modelID, err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Info("Generation model responded",
		slog.String("model_id", c.modelID),
		slog.Duration("latency", time.Since(start)),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("stop_reason", resp.StopReason),
	)

	return sb.String(), nil
}
