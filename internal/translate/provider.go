// Package translate defines the translation provider interface and its
// implementations. Providers take a single text and produce its translation;
// retry, caching, and queueing live in the layers above.
package translate

import (
	"context"
	"fmt"
)

// Request is a single translation unit handed to a provider.
type Request struct {
	Text       string // text to translate, possibly containing marker runes
	SourceLang string // BCP 47 tag of the source language
	TargetLang string // BCP 47 tag of the target language
	Preserve   string // runes the provider must echo back untouched, "" for none
}

// Provider is the interface for translation backends.
type Provider interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// ProviderError indicates a provider failure (API error, rate limit, bad
// response). Retryable tells the queue whether re-attempting makes sense.
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}
