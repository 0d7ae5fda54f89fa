// File: internal/services/suggestion/gemini_backend.go
package suggestion

import (
	"context"
	"fmt"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

// Backend turns a prompt into generated text.
// Implementations return ErrInvalidResponseShape (possibly wrapped) when a successful
// response has no usable text, and transport errors for everything else.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
}

// Sender is the part of transport.RetryingTransport the Gemini backend uses.
type Sender interface {
	Send(ctx context.Context, body interface{}) (*transport.Response, error)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateContentRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction content   `json:"systemInstruction"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// newGenerateContentRequest builds the generateContent body for a prompt.
func newGenerateContentRequest(p domain.Prompt) generateContentRequest {
	return generateContentRequest{
		Contents:          []content{{Parts: []part{{Text: p.UserContent}}}},
		SystemInstruction: content{Parts: []part{{Text: p.SystemInstruction}}},
	}
}

// ExtractText walks candidates[0].content.parts[0].text.
func ExtractText(resp *transport.Response) (string, error) {
	var body generateContentResponse
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}
	if len(body.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponseShape)
	}
	c := body.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 {
		return "", fmt.Errorf("%w: first candidate has no parts", ErrInvalidResponseShape)
	}
	if c.Parts[0].Text == "" {
		return "", fmt.Errorf("%w: first part is empty", ErrInvalidResponseShape)
	}
	return c.Parts[0].Text, nil
}

// GeminiBackend calls the generateContent endpoint through a retrying transport.
type GeminiBackend struct {
	sender Sender
}

func NewGeminiBackend(sender Sender) *GeminiBackend {
	return &GeminiBackend{sender: sender}
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := b.sender.Send(ctx, newGenerateContentRequest(prompt))
	if err != nil {
		return "", err
	}
	return ExtractText(resp)
}
