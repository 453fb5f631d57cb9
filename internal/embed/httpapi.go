package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

const defaultEmbedTimeout = 30 * time.Second

// HTTPProvider talks to a self-hosted embedding service over a plain JSON
// API: POST /embed {"texts": [...]} → {"vectors": [[...]]}.
type HTTPProvider struct {
	client *req.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultEmbedTimeout)
	return &HTTPProvider{client: client}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Model   string      `json:"model,omitempty"`
	Vectors [][]float32 `json:"vectors"`
	Dim     int         `json:"dim,omitempty"`
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&embedRequest{Texts: []string{text}}).
		SetSuccessResult(&out).
		Post("/embed")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("%w: http %d", ErrProvider, resp.StatusCode)
	}
	if len(out.Vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrProvider)
	}
	return out.Vectors[0], nil
}
