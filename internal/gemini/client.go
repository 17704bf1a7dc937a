package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/renderri/server/internal/config"
)

const enhancementInstruction = "Enhance the quality of this image: increase sharpness, " +
	"reduce noise and artifacts, and improve lighting and color balance while preserving " +
	"the original content and composition. Return only the improved image."

// Client talks to the Gemini generateContent API over plain HTTP.
// Image payloads travel inline as base64 data in both directions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func NewClient(cfg config.GeminiConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the model tag recorded alongside each generation.
func (c *Client) Model() string {
	return c.model
}

// GenerateImage asks the model to render the prompt and returns the image
// as a data URI. An empty string with a nil error means the model replied
// without producing an image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	return c.generate(ctx, req)
}

// EnhanceImage sends an existing image back through the model with a fixed
// quality-improvement instruction. The input must be an image data URI.
func (c *Client) EnhanceImage(ctx context.Context, photoDataURI string) (string, error) {
	mimeType, data, err := ParseDataURI(photoDataURI)
	if err != nil {
		return "", fmt.Errorf("invalid image payload: %w", err)
	}

	req := generateRequest{
		Contents: []content{
			{Parts: []part{
				{Text: enhancementInstruction},
				{InlineData: &inlineData{MimeType: mimeType, Data: data}},
			}},
		},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	return c.generate(ctx, req)
}

func (c *Client) generate(ctx context.Context, reqBody generateRequest) (string, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}

	// The image arrives as an inline data part; text parts may precede it.
	for _, p := range genResp.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return EncodeDataURI(p.InlineData.MimeType, p.InlineData.Data), nil
		}
	}
	return "", nil
}

// ParseDataURI splits a "data:<mime>;base64,<data>" URI into its MIME type
// and base64 payload, validating that the payload decodes.
func ParseDataURI(uri string) (mimeType, data string, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", fmt.Errorf("not a data URI")
	}
	rest := strings.TrimPrefix(uri, "data:")

	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", fmt.Errorf("malformed data URI: missing payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", fmt.Errorf("malformed data URI: expected base64 encoding")
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		return "", "", fmt.Errorf("malformed data URI: missing MIME type")
	}

	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("malformed data URI: %w", err)
	}
	return mimeType, payload, nil
}

// EncodeDataURI builds a data URI from a MIME type and base64 payload.
func EncodeDataURI(mimeType, base64Data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}
