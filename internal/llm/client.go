package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var ErrNoMessages = errors.New("llm: at least one message is required")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model    string
	System   []string
	Messages []Message
	// MaxTokens, Temperature and TopP are omitted when zero so the provider
	// default applies.
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSON asks the provider for a bare JSON object when it supports that.
	JSON bool
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Fallback tries primary, then fallback when primary fails.
type Fallback struct {
	primary  Client
	fallback Client
	logger   zerolog.Logger
}

func NewFallback(primary, fallback Client, logger zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, logger: logger}
}

func (c *Fallback) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	c.logger.Warn().Err(err).Bool("fallback_available", c.fallback != nil).Msg("primary LLM failed")
	if c.fallback == nil || ctx.Err() != nil {
		return Response{}, err
	}

	resp, ferr := c.fallback.Complete(ctx, req)
	if ferr != nil {
		c.logger.Error().Err(ferr).AnErr("primary_error", err).Msg("fallback LLM also failed")
		return Response{}, ferr
	}
	return resp, nil
}

var _ Client = (*Fallback)(nil)
