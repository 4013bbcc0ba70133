package upstage

import (
	"context"
	"fmt"
	"time"
)

// Embedder implements ports.Embedder over the /v1/embeddings endpoint with a
// TTL cache in front. Passage and query embeddings share the cache; keys
// hash the model and the text.
type Embedder struct {
	client *Client
	cache  *embeddingCache
}

func NewEmbedder(client *Client, cacheTTL time.Duration) *Embedder {
	return &Embedder{
		client: client,
		cache:  newEmbeddingCache(cacheTTL),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if vec, ok := e.cache.get(e.client.embedModel, text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	input := make([]string, len(missing))
	for j, i := range missing {
		input[j] = texts[i]
	}

	var response embedResponse
	err := e.client.executor.Do(ctx, "embed", func(ctx context.Context) error {
		if err := e.client.limiter.Wait(ctx); err != nil {
			return err
		}
		return e.client.postJSON(ctx, "/v1/embeddings", embedRequest{
			Model: e.client.embedModel,
			Input: input,
		}, &response, "embed")
	}, classifyAPIError)
	if err != nil {
		return nil, mapAPIError("embed", err)
	}
	if len(response.Data) != len(missing) {
		return nil, mapAPIError("embed", &DecodeError{
			Operation: "embed",
			Err:       fmt.Errorf("expected %d embeddings, got %d", len(missing), len(response.Data)),
		})
	}

	for j, item := range response.Data {
		pos := j
		if item.Index >= 0 && item.Index < len(missing) {
			pos = item.Index
		}
		i := missing[pos]
		out[i] = item.Embedding
		e.cache.put(e.client.embedModel, texts[i], item.Embedding)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, mapAPIError("embed", &DecodeError{
			Operation: "embed",
			Err:       fmt.Errorf("empty embedding result"),
		})
	}
	return vectors[0], nil
}
