package provider

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
	// MaxRetries is passed to the client; zero disables retries.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RequestTimeout bounds a single HTTP attempt. The turn timeout still
	// applies through the context.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates turns through the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
	logger *logging.Logger
}

// NewOpenAI builds a generator from cfg. Extra client options are applied
// last, which lets tests inject an HTTP client.
func NewOpenAI(cfg OpenAIConfig, logger *logging.Logger, extra ...option.RequestOption) *OpenAI {
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger.WithProvider("openai").With("model", model),
	}
}

func (o *OpenAI) params(req engine.TurnRequest) openai.ChatCompletionNewParams {
	p := BuildPrompt(req)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
	}
	if req.Turn.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Turn.MaxTokens))
	}
	return params
}

// Generate implements engine.Generator.
func (o *OpenAI) Generate(ctx context.Context, req engine.TurnRequest) (engine.GenerationResult, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return engine.GenerationResult{}, o.wrap(ctx, req, err)
	}
	if len(resp.Choices) == 0 {
		return engine.GenerationResult{}, errors.Wrap(errors.ErrGenerationFailed, "openai returned no choices")
	}
	return engine.GenerationResult{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// GenerateStream implements engine.StreamingGenerator. Usage is requested in
// the final stream chunk; when the server omits it the counts stay zero and
// the engine falls back to its own estimate.
func (o *OpenAI) GenerateStream(ctx context.Context, req engine.TurnRequest, onChunk func(string)) (engine.GenerationResult, error) {
	params := o.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var acc openai.ChatCompletionAccumulator
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return engine.GenerationResult{}, o.wrap(ctx, req, err)
	}
	if len(acc.Choices) == 0 {
		return engine.GenerationResult{}, errors.Wrap(errors.ErrGenerationFailed, "openai stream returned no choices")
	}
	return engine.GenerationResult{
		Content:      acc.Choices[0].Message.Content,
		InputTokens:  int(acc.Usage.PromptTokens),
		OutputTokens: int(acc.Usage.CompletionTokens),
	}, nil
}

// wrap classifies a client error. Context errors pass through untouched so
// the engine can tell a turn timeout from a provider failure.
func (o *OpenAI) wrap(ctx context.Context, req engine.TurnRequest, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		o.logger.Warn("completion request failed",
			"session_id", req.SessionID,
			"turn_id", req.Turn.ID,
			"status", apiErr.StatusCode,
		)
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
		return errors.NewSessionError("openai completion", errors.ErrGenerationFailed).
			WithSessionID(req.SessionID).
			WithTurn(req.Turn.Index).
			WithRetryable(retryable)
	}
	return errors.Wrapf(errors.ErrGenerationFailed, "openai completion: %v", err)
}

var _ engine.StreamingGenerator = (*OpenAI)(nil)
