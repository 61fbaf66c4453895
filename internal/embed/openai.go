// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package embed

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	strataerr "github.com/strata-dev/strata/pkg/errors"
)

// OpenAI produces embeddings through the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAI builds an OpenAI embedder. baseURL may be empty for the default
// endpoint; dims is the deployment's fixed vector width.
func NewOpenAI(apiKey, baseURL, model string, dims int) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
		dims:   dims,
	}
}

func (o *OpenAI) Dimensions() int { return o.dims }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      o.model,
		Dimensions: o.dims,
	})
	if err != nil {
		return nil, strataerr.Wrapf(err, strataerr.CodeEmbeddingFailure, "creating embedding")
	}
	if len(resp.Data) == 0 {
		return nil, strataerr.New(strataerr.CodeEmbeddingFailure, "embedding response is empty")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != o.dims {
		return nil, strataerr.Errorf(strataerr.CodeEmbeddingInvalid,
			"embedding dimension mismatch: got %d, want %d", len(vec), o.dims)
	}
	return vec, nil
}
