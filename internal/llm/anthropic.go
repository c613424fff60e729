// Package llm adapts the Anthropic Messages API to the triage pipeline's
// streaming model runner.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 8192
	DefaultTemperature = 0.2
	// DefaultIdleTimeout is the longest silence tolerated between stream
	// events, including the wait for the first one. Long answers are fine
	// as long as events keep arriving.
	DefaultIdleTimeout = 90 * time.Second
)

var ErrStreamIdle = errors.New("no stream events within the idle timeout")

// AnthropicRunner streams text deltas of a single-turn conversation.
type AnthropicRunner struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	system      string
	idle        time.Duration
	reqOpts     []option.RequestOption
	log         logging.Logger
}

type Option func(*AnthropicRunner)

func WithModel(model string) Option {
	return func(r *AnthropicRunner) {
		if model != "" {
			r.model = model
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(r *AnthropicRunner) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(r *AnthropicRunner) { r.temperature = t }
}

// WithSystemPrompt sets the system message sent with every run.
func WithSystemPrompt(s string) Option {
	return func(r *AnthropicRunner) { r.system = s }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(r *AnthropicRunner) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithRequestOptions passes client options such as option.WithBaseURL.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(r *AnthropicRunner) { r.reqOpts = append(r.reqOpts, opts...) }
}

func WithLogger(l logging.Logger) Option {
	return func(r *AnthropicRunner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewAnthropicRunner returns common.ErrMissingAPIKey when apiKey is empty.
func NewAnthropicRunner(apiKey string, opts ...Option) (*AnthropicRunner, error) {
	if apiKey == "" {
		return nil, common.ErrMissingAPIKey
	}
	r := &AnthropicRunner{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		idle:        DefaultIdleTimeout,
		log:         logging.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, r.reqOpts...)
	r.client = anthropic.NewClient(reqOpts...)
	return r, nil
}

func (r *AnthropicRunner) params(prompt string) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:       anthropic.Model(r.model),
		MaxTokens:   r.maxTokens,
		Temperature: anthropic.Float(r.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if r.system != "" {
		p.System = []anthropic.TextBlockParam{{Text: r.system}}
	}
	return p
}

// Run yields text deltas in arrival order. A transport or API error is
// yielded once as the last element.
func (r *AnthropicRunner) Run(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		r.log.Debug(ctx, "anthropic request", "model", r.model, "prompt", logging.SafeContent(ctx, r.log, prompt))

		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		idle := time.AfterFunc(r.idle, func() { cancel(ErrStreamIdle) })
		defer idle.Stop()

		stream := r.client.Messages.NewStreaming(ctx, r.params(prompt))
		defer stream.Close()

		var size int
		for stream.Next() {
			idle.Stop()
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
					size += len(d.Text)
					if !yield(d.Text, nil) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				r.log.Debug(ctx, "anthropic usage", "output_tokens", ev.Usage.OutputTokens, "stop_reason", string(ev.Delta.StopReason))
			}
			idle.Reset(r.idle)
		}
		idle.Stop()
		if err := stream.Err(); err != nil {
			if errors.Is(context.Cause(ctx), ErrStreamIdle) {
				err = ErrStreamIdle
			}
			r.log.Error(ctx, "anthropic stream failed", "error", err)
			yield("", fmt.Errorf("anthropic stream: %w", err))
			return
		}
		r.log.Info(ctx, "anthropic response", "model", r.model, "size", size)
	}
}
