// Package images acquires product images: AI generation through the Hugging
// Face inference API with a deterministic placeholder fallback. Acquisition
// is best-effort and never fails the caller.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/storepilotai/storepilot/internal/shopify"
)

const (
	// DefaultBaseURL is the Hugging Face inference endpoint root.
	DefaultBaseURL = "https://api-inference.huggingface.co/models"

	promptPrefix = "High quality professional product photography, studio lighting, white background, e-commerce style: "

	maxSeedLength = 30
	maxModelWait  = 60 * time.Second
)

// Acquirer yields one image per prompt. Implementations never return an
// error; a failed generation degrades to a placeholder reference.
type Acquirer interface {
	Acquire(ctx context.Context, prompts []string) []shopify.Image
}

// Service generates images via Hugging Face text-to-image models. Without an
// API key every prompt falls back to a seeded picsum.photos URL.
type Service struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NewService builds the image service; baseURL defaults to DefaultBaseURL.
func NewService(log *slog.Logger, apiKey, model, baseURL string) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
		logger: log.With(slog.String("service", "images")),
	}
}

// Acquire returns exactly one image per prompt. Generation runs sequentially
// to stay under the inference API's free-tier limits.
func (s *Service) Acquire(ctx context.Context, prompts []string) []shopify.Image {
	if len(prompts) == 0 {
		return nil
	}
	if s.apiKey == "" {
		s.logger.Warn("no API key configured, using placeholder images")
		results := make([]shopify.Image, len(prompts))
		for i, prompt := range prompts {
			results[i] = shopify.Image{Src: PlaceholderURL(prompt, i)}
		}
		return results
	}

	results := make([]shopify.Image, 0, len(prompts))
	for i, prompt := range prompts {
		attachment, err := s.generate(ctx, promptPrefix+prompt)
		if err != nil {
			s.logger.Warn("image generation failed, using placeholder",
				slog.String("prompt", truncate(prompt, 60)), slog.Any("error", err))
			results = append(results, shopify.Image{Src: PlaceholderURL(prompt, i)})
			continue
		}
		results = append(results, shopify.Image{Attachment: attachment})
	}
	return results
}

// DefaultPrompt derives an image prompt from a product title.
func DefaultPrompt(title string) string {
	return fmt.Sprintf("Professional product photo of %s, studio lighting, white background, e-commerce style", title)
}

// PlaceholderURL builds a deterministic picsum.photos URL seeded from the
// prompt so repeated calls for the same prompt resolve to the same image.
func PlaceholderURL(prompt string, index int) string {
	seed := make([]rune, 0, maxSeedLength)
	for _, r := range prompt {
		if len(seed) == maxSeedLength {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			seed = append(seed, r)
		} else {
			seed = append(seed, '-')
		}
	}
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/800/800", string(seed), index)
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	data, status, err := s.post(ctx, prompt)
	if err != nil {
		return "", err
	}

	// 503 means the model is cold-starting; wait the estimated time and
	// retry once.
	if status == http.StatusServiceUnavailable {
		wait := coldStartWait(data)
		s.logger.Info("model loading, waiting", slog.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return "", err
		}
		data, status, err = s.post(ctx, prompt)
		if err != nil {
			return "", err
		}
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("inference API error %d: %s", status, truncate(string(data), 200))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *Service) post(ctx context.Context, prompt string) ([]byte, int, error) {
	payload, err := json.Marshal(generateRequest{
		Inputs:     prompt,
		Parameters: generateParameters{Width: 768, Height: 768},
	})
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+s.model, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("close response body failed", slog.Any("error", err))
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func coldStartWait(body []byte) time.Duration {
	var payload struct {
		EstimatedTime float64 `json:"estimated_time"`
	}
	wait := 30 * time.Second
	if err := json.Unmarshal(body, &payload); err == nil && payload.EstimatedTime > 0 {
		wait = time.Duration(payload.EstimatedTime * float64(time.Second))
	}
	if wait > maxModelWait {
		wait = maxModelWait
	}
	return wait
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
