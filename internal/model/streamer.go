// Package model adapts Genkit generation to the orchestrator's streaming
// contract. It owns provider concerns: retry with backoff, transient error
// classification, and mapping Genkit chunks and tool requests onto the
// orchestrator's event types.
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/agentdeck/agentdeck/internal/chat"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/usage"
)

// Config holds the Streamer dependencies.
type Config struct {
	Genkit *genkit.Genkit
	Logger log.Logger

	// Retry controls backoff for transient provider failures. Zero value
	// uses defaults.
	Retry RetryConfig

	// Limiter throttles each attempt, including retries. Nil disables
	// throttling.
	Limiter *rate.Limiter
}

// Streamer runs streaming Genkit generations. It implements the
// orchestrator's ModelStreamer interface.
type Streamer struct {
	g       *genkit.Genkit
	logger  log.Logger
	retry   RetryConfig
	limiter *rate.Limiter
}

// NewStreamer creates a Streamer.
func NewStreamer(cfg Config) (*Streamer, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Streamer{
		g:       cfg.Genkit,
		logger:  cfg.Logger,
		retry:   cfg.Retry.withDefaults(),
		limiter: cfg.Limiter,
	}, nil
}

// Stream runs one model call, forwarding text and reasoning fragments to
// cb in emission order. Tool requests are returned, never executed here:
// the orchestrator runs tools and decides whether another step happens.
func (s *Streamer) Stream(ctx context.Context, req *chat.ModelRequest, cb func(context.Context, chat.Delta) error) (*chat.ModelResult, error) {
	streamed := false
	opts := []ai.GenerateOption{
		ai.WithModelName(req.Model),
		ai.WithReturnToolRequests(true),
		ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			streamed = true
			return forwardChunk(ctx, chunk, cb)
		}),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if len(req.Messages) > 0 {
		opts = append(opts, ai.WithMessages(req.Messages...))
	}
	if refs := s.toolRefs(req); len(refs) > 0 {
		opts = append(opts, ai.WithTools(refs...))
	}

	resp, err := s.generateWithRetry(ctx, opts, &streamed)
	if err != nil {
		return nil, err
	}

	result := &chat.ModelResult{Message: resp.Message}
	for _, tr := range resp.ToolRequests() {
		result.ToolCalls = append(result.ToolCalls, chat.ToolCall{
			Ref:   tr.Ref,
			Name:  tr.Name,
			Input: tr.Input,
		})
	}
	if resp.Usage != nil {
		result.Usage = usage.Raw{
			InputTokens:     int64(resp.Usage.InputTokens),
			OutputTokens:    int64(resp.Usage.OutputTokens),
			ReasoningTokens: int64(resp.Usage.ThoughtsTokens),
			TotalTokens:     int64(resp.Usage.TotalTokens),
		}
	}
	return result, nil
}

// toolRefs resolves the request's tools against the Genkit registry.
// Tools are declared there at startup; a miss is a wiring bug surfaced
// by logging, not by failing the generation.
func (s *Streamer) toolRefs(req *chat.ModelRequest) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(req.Tools))
	for _, t := range req.Tools {
		ref := genkit.LookupTool(s.g, t.Name())
		if ref == nil {
			s.logger.Warn("tool not registered with genkit", "tool", t.Name())
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// generateWithRetry retries transient failures with exponential backoff.
// Once any chunk has reached the callback a retry would duplicate output
// the client already rendered, so streaming attempts fail hard.
func (s *Streamer) generateWithRetry(ctx context.Context, opts []ai.GenerateOption, streamed *bool) (*ai.ModelResponse, error) {
	var lastErr error
	delay := s.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limit: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, s.g, opts...)
		if err == nil {
			s.logger.Debug("generation complete", "attempts", attempt+1, "elapsed", time.Since(start))
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) || *streamed || attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Debug("retrying model call", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generation canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, s.retry.MaxInterval)
	}

	return nil, fmt.Errorf("generating response: %w", lastErr)
}

// forwardChunk maps one Genkit chunk onto deltas in part order.
func forwardChunk(ctx context.Context, chunk *ai.ModelResponseChunk, cb func(context.Context, chat.Delta) error) error {
	for _, part := range chunk.Content {
		var delta chat.Delta
		switch {
		case part.IsReasoning():
			delta.Reasoning = part.Text
		case part.IsText():
			delta.Text = part.Text
		default:
			continue
		}
		if delta.Text == "" && delta.Reasoning == "" {
			continue
		}
		if err := cb(ctx, delta); err != nil {
			return err
		}
	}
	return nil
}
