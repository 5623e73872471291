package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-lessoncraft-be/pkg/store"
)

// defaultStageTimeout bounds a single downstream call. Generation services
// are slow (templating, TTS, LLM), so this is deliberately generous.
const defaultStageTimeout = 120 * time.Second

func postJSON(ctx context.Context, client *http.Client, url string, reqBody interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stage service error (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	return json.Unmarshal(bodyBytes, out)
}

// HTTPRenderer calls the slide templating service.
type HTTPRenderer struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPRenderer(baseURL string) *HTTPRenderer {
	return &HTTPRenderer{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: defaultStageTimeout},
	}
}

type renderRequest struct {
	Unit  store.GenerationUnit `json:"unit"`
	Theme string               `json:"theme"`
}

type renderResponse struct {
	Html string `json:"html"`
}

func (r *HTTPRenderer) Render(ctx context.Context, unit store.GenerationUnit, theme string) (string, error) {
	var resp renderResponse
	endpoint := fmt.Sprintf("%s/api/render/v1/slide", r.BaseURL)
	if err := postJSON(ctx, r.client, endpoint, renderRequest{Unit: unit, Theme: theme}, &resp); err != nil {
		return "", fmt.Errorf("render stage failed for unit %s: %w", unit.Id, err)
	}
	return resp.Html, nil
}

// HTTPNarrator calls the voice synthesis service.
type HTTPNarrator struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPNarrator(baseURL string) *HTTPNarrator {
	return &HTTPNarrator{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: defaultStageTimeout},
	}
}

type narrateRequest struct {
	Text string `json:"text"`
}

type narrateResponse struct {
	AudioRef string `json:"audio_ref"`
}

func (n *HTTPNarrator) Narrate(ctx context.Context, text string) (string, error) {
	var resp narrateResponse
	endpoint := fmt.Sprintf("%s/api/narrate/v1/speech", n.BaseURL)
	if err := postJSON(ctx, n.client, endpoint, narrateRequest{Text: text}, &resp); err != nil {
		return "", fmt.Errorf("narrate stage failed: %w", err)
	}
	return resp.AudioRef, nil
}

// HTTPScriptGenerator calls the tutoring-script generation service.
type HTTPScriptGenerator struct {
	BaseURL string
	client  *http.Client
}

func NewHTTPScriptGenerator(baseURL string) *HTTPScriptGenerator {
	return &HTTPScriptGenerator{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: defaultStageTimeout},
	}
}

type scriptRequest struct {
	Unit    store.GenerationUnit `json:"unit"`
	Learner LearnerProfile       `json:"learner"`
}

func (g *HTTPScriptGenerator) Generate(ctx context.Context, unit store.GenerationUnit, profile LearnerProfile) (*TeachingScript, error) {
	var resp TeachingScript
	endpoint := fmt.Sprintf("%s/api/tutor/v1/script", g.BaseURL)
	if err := postJSON(ctx, g.client, endpoint, scriptRequest{Unit: unit, Learner: profile}, &resp); err != nil {
		return nil, fmt.Errorf("teaching stage failed for unit %s: %w", unit.Id, err)
	}
	return &resp, nil
}
