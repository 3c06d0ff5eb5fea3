package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lessonloop/internal/logger"
)

// ClientConfig holds the call defaults shared by every component.
type ClientConfig struct {
	Retry       RetryConfig
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultClientConfig mirrors the defaults of DefaultConfig.
func DefaultClientConfig() ClientConfig {
	return DefaultConfig().ClientConfig()
}

// Client is the single entry point the engine uses to talk to a model. It
// owns rate-limit retries, the per-call timeout, and the extraction and
// validation of structured output. It keeps no state between calls.
type Client struct {
	provider Provider
	cfg      ClientConfig
	log      *logger.Logger
}

// NewClient wraps a provider. The provider must not retry on its own.
func NewClient(p Provider, cfg ClientConfig, log *logger.Logger) *Client {
	return &Client{provider: p, cfg: cfg, log: logger.OrNop(log)}
}

// ModelID returns the underlying model identifier.
func (c *Client) ModelID() string {
	return c.provider.ModelID()
}

type callConfig struct {
	system      string
	maxRetries  int
	maxTokens   int
	temperature float64
}

// CallOption tunes a single call.
type CallOption func(*callConfig)

// System sets the system prompt.
func System(s string) CallOption {
	return func(cc *callConfig) { cc.system = s }
}

// MaxRetries overrides how many times a rate-limited call is retried.
func MaxRetries(n int) CallOption {
	return func(cc *callConfig) {
		if n >= 0 {
			cc.maxRetries = n
		}
	}
}

// MaxTokens overrides the response token budget.
func MaxTokens(n int) CallOption {
	return func(cc *callConfig) {
		if n > 0 {
			cc.maxTokens = n
		}
	}
}

// Temperature overrides the sampling temperature.
func Temperature(t float64) CallOption {
	return func(cc *callConfig) { cc.temperature = t }
}

func (c *Client) callConfig(opts []CallOption) callConfig {
	cc := callConfig{
		maxRetries:  c.cfg.Retry.MaxRetries,
		maxTokens:   c.cfg.MaxTokens,
		temperature: c.cfg.Temperature,
	}
	for _, o := range opts {
		o(&cc)
	}
	return cc
}

func (c *Client) generate(ctx context.Context, req Request, cc callConfig) (*Response, error) {
	retry := c.cfg.Retry
	retry.MaxRetries = cc.maxRetries
	p := WithRetry(WithTimeout(c.provider, c.cfg.Timeout), retry)
	return p.Generate(ctx, req)
}

// GenerateText sends prompt as a single user message and returns the
// model's reply. Every failure is wrapped in ErrGenerationFailed.
func (c *Client) GenerateText(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	cc := c.callConfig(opts)
	req := Request{
		System:      cc.system,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   cc.maxTokens,
		Temperature: cc.temperature,
	}

	resp, err := c.generate(ctx, req, cc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, &ErrInvalidResponse{Err: errors.New("empty response")})
	}
	return text, nil
}

// GenerateStructured asks for a JSON object conforming to schema and returns
// it, or (nil, false) when the call fails or no valid object can be pulled
// from the reply. Callers supply their own fallback; the reason is logged.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema *Schema, opts ...CallOption) (json.RawMessage, bool) {
	cc := c.callConfig(opts)
	req := Request{
		System:      cc.system,
		Messages:    []Message{{Role: RoleUser, Content: prompt + schemaInstructions(schema)}},
		Schema:      schema,
		MaxTokens:   cc.maxTokens,
		Temperature: cc.temperature,
	}

	purpose := PurposeFrom(ctx)
	resp, err := c.generate(ctx, req, cc)
	if err != nil {
		c.log.Warn("structured generation failed", "purpose", purpose, "error", err)
		return nil, false
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		c.log.Warn("malformed structured output", "purpose", purpose, "error", err, "stop_reason", resp.StopReason)
		return nil, false
	}
	if err := validateResponse(schema, raw); err != nil {
		c.log.Warn("structured output failed validation", "purpose", purpose, "error", err)
		return nil, false
	}
	return raw, true
}

// Decode runs GenerateStructured and unmarshals the object into T.
func Decode[T any](ctx context.Context, c *Client, prompt string, schema *Schema, opts ...CallOption) (*T, bool) {
	raw, ok := c.GenerateStructured(ctx, prompt, schema, opts...)
	if !ok {
		return nil, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Warn("decode structured output", "purpose", PurposeFrom(ctx), "error", err)
		return nil, false
	}
	return &out, true
}

func schemaInstructions(schema *Schema) string {
	if schema == nil {
		return ""
	}
	def, err := json.MarshalIndent(schema.Definition, "", "  ")
	if err != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRespond with a single JSON object")
	if schema.Description != "" {
		fmt.Fprintf(&b, " (%s)", schema.Description)
	}
	b.WriteString(" that conforms to this JSON Schema. Wrap it in a ```json code block and add nothing else.\n")
	b.Write(def)
	return b.String()
}
