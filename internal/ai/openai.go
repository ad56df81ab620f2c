package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint
// (api.openai.com, OpenRouter).
type OpenAIProvider struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openAIChatReq struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openAIChatResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		Name:    "openai",
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{},
	}
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	p := NewOpenAIProvider(baseURL, apiKey, model)
	p.Name = "openrouter"
	p.SiteURL = siteURL
	p.AppName = appName
	return p
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (Completion, error) {
	if p.Client == nil {
		return Completion{}, fmt.Errorf("%s: http client is nil", p.Name)
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return Completion{}, fmt.Errorf("%s: api key is required", p.Name)
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return Completion{}, fmt.Errorf("%s: model is required", p.Name)
	}

	b, err := json.Marshal(openAIChatReq{Model: model, Messages: messages})
	if err != nil {
		return Completion{}, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return Completion{}, fmt.Errorf("%s: %s", p.Name, msg)
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return Completion{}, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, fmt.Errorf("%s: empty response", p.Name)
	}

	out := Completion{Content: decoded.Choices[0].Message.Content}
	if decoded.Usage != nil {
		out.Usage = *decoded.Usage
	}
	return out, nil
}
