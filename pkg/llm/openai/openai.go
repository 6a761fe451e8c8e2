// Package openai provides a translation gateway backed by an OpenAI-compatible
// chat completions API.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
//	text, err := provider.Translate(ctx, `Please translate this text: "hello" ...`)
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/entrhq/tiptranslate/pkg/llm"
	"github.com/openai/openai-go"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultMaxTokens caps the length of a translation.
	DefaultMaxTokens = 300

	// DefaultSystemPrompt frames every completion as a translation task.
	DefaultSystemPrompt = "You are a helpful assistant that translates text."

	// maxErrorBody bounds how much of a failed response is kept in a StatusError.
	maxErrorBody = 2048
)

// Provider implements llm.Gateway for OpenAI-compatible APIs.
type Provider struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	model        string
	maxTokens    int
	systemPrompt string
}

var _ llm.Gateway = (*Provider)(nil)

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		if baseURL != "" {
			p.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithMaxTokens sets the max_tokens of each completion.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithSystemPrompt replaces the system message sent with each instruction.
func WithSystemPrompt(prompt string) ProviderOption {
	return func(p *Provider) {
		p.systemPrompt = prompt
	}
}

// WithHTTPClient sets the HTTP client. Timeouts belong on the client or on
// the context passed to Translate.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY environment variable.
// If baseURL is not provided via WithBaseURL option, it will check OPENAI_BASE_URL environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		httpClient:   &http.Client{},
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		model:        DefaultModel,
		maxTokens:    DefaultMaxTokens,
		systemPrompt: DefaultSystemPrompt,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = strings.TrimSuffix(envBaseURL, "/")
		}
	}

	return p, nil
}

// Translate sends the instruction as a single chat completion and returns the
// trimmed content of the first choice.
//
// Errors are classified so callers never need to look at the text:
// a non-2xx status yields *llm.StatusError, a response without usable content
// yields llm.ErrNoTranslation, and anything that prevents a response yields an
// error wrapping llm.ErrTransport.
func (p *Provider) Translate(ctx context.Context, instruction string) (string, error) {
	req, err := p.newRequest(ctx, instruction)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", llm.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &llm.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", llm.ErrTransport, err)
	}

	return parseCompletion(body)
}

// newRequest builds the chat completion request
func (p *Provider) newRequest(ctx context.Context, instruction string) (*http.Request, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(p.systemPrompt))
	}
	messages = append(messages, openai.UserMessage(instruction))

	reqBody := map[string]interface{}{
		"model":      p.model,
		"messages":   messages,
		"max_tokens": p.maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	return req, nil
}

// parseCompletion extracts the first choice's content
func parseCompletion(body []byte) (string, error) {
	var completion struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: malformed response: %w", llm.ErrNoTranslation, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", llm.ErrNoTranslation)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", llm.ErrNoTranslation)
	}

	return content, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}
