package upstage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/scholarlab/research-assistant/internal/core/domain"
	"github.com/scholarlab/research-assistant/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat/embeddings API. All outbound
// calls go through a shared rate limiter and the resilience executor; 429
// and 5xx responses are retried, malformed bodies are not.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	BaseURL           string
	APIKey            string
	ChatModel         string
	EmbedModel        string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	Policy            resilience.Policy
}

func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		executor:   resilience.NewExecutor(opts.Policy),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements ports.CompletionService.
func (c *Client) Generate(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if len(messages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("no messages"))
	}

	payload := chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var response chatResponse
	err := c.executor.Do(ctx, "chat", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.postJSON(ctx, "/v1/chat/completions", payload, &response, "chat")
	}, classifyAPIError)
	if err != nil {
		return nil, mapAPIError("chat", err)
	}

	if len(response.Choices) == 0 {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "chat", fmt.Errorf("response has no choices"))
	}

	return &domain.Completion{
		Content: strings.TrimSpace(response.Choices[0].Message.Content),
		Usage: domain.TokenUsage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}, nil
}
