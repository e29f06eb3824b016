package providers

import (
	"context"
)

// Config represents one vision request to a model provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
	MIMEType    string
}

// Provider defines the interface for a vision-capable model provider
type Provider interface {
	Describe(ctx context.Context, config Config) (string, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, config Config) (string, error)

func (f ProviderFunc) Describe(ctx context.Context, config Config) (string, error) {
	return f(ctx, config)
}
