package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"watchlater/store"
)

const defaultAITimeout = 30 * time.Second

// AIClient suggests tags for batches of videos using a remote AI service.
//
// The response contract is lenient by design: any malformed or wrong-shape
// response yields an empty mapping rather than an error, so a broken AI
// service can never block a merge or sync.
type AIClient struct {
	// Endpoint is the tagging service URL.
	Endpoint string
	// HTTPClient is used for requests. Nil selects a default client.
	HTTPClient *http.Client
}

// NewAIClient creates an AI tagging client for the given endpoint.
func NewAIClient(endpoint string) *AIClient {
	return &AIClient{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: defaultAITimeout},
	}
}

type aiRequest struct {
	Videos []aiVideo `json:"videos"`
}

type aiVideo struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel,omitempty"`
}

type aiResponse struct {
	Tags map[string][]string `json:"tags"`
}

// Batch requests tag suggestions for videos. The returned map is keyed by
// video ID; videos the service did not tag are simply absent. A malformed
// response yields an empty map and a nil error.
func (c *AIClient) Batch(ctx context.Context, videos []store.Video, credential string) (map[string][]string, error) {
	if len(videos) == 0 || credential == "" {
		return map[string][]string{}, nil
	}

	req := aiRequest{Videos: make([]aiVideo, 0, len(videos))}
	for _, v := range videos {
		req.Videos = append(req.Videos, aiVideo{ID: v.ID, Title: v.Title, Channel: v.Channel})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tagger: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tagger: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultAITimeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tagger: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("tagger: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("tagger: service returned status %d, treating as no suggestions", resp.StatusCode)
		return map[string][]string{}, nil
	}

	var parsed aiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Tags == nil {
		log.Printf("tagger: malformed response, treating as no suggestions")
		return map[string][]string{}, nil
	}

	// Keep only suggestions for videos we actually asked about.
	asked := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		asked[v.ID] = struct{}{}
	}
	out := make(map[string][]string, len(parsed.Tags))
	for id, tags := range parsed.Tags {
		if _, ok := asked[id]; !ok {
			continue
		}
		if len(tags) == 0 {
			continue
		}
		out[id] = tags
	}
	return out, nil
}
