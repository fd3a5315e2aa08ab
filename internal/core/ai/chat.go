package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/llmbatch"
)

// Chat generalizes LocalLLMAdapter's SendBatch HTTP mechanics into the single-call
// contract internal/llmbatch.Client requires: raw (system, user) messages in, raw
// content out, no JSON-line-array assumption baked in. Satisfies llmbatch.Client.
func (l *LocalLLMAdapter) Chat(ctx context.Context, model string, messages []llmbatch.Message, timeout time.Duration) (llmbatch.ChatResponse, error) {
	if model == "" {
		model = l.model
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs := make([]localLLMMessage, len(messages))
	for i, m := range messages {
		msgs[i] = localLLMMessage{Role: m.Role, Content: m.Content}
	}
	reqBody := localLLMRequest{Model: model, Messages: msgs, Stream: false, Temperature: l.temperature}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, "POST", l.endpoint+"/api/chat", bytes.NewReader(reqJSON))
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "local", Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp localLLMResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Error != "" {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "local", Code: "inference_error", Message: apiResp.Error}
	}
	return llmbatch.ChatResponse{Content: apiResp.Message.Content}, nil
}

// Chat generalizes OpenAIAdapter's SendBatch HTTP mechanics into llmbatch.Client.
func (o *OpenAIAdapter) Chat(ctx context.Context, model string, messages []llmbatch.Message, timeout time.Duration) (llmbatch.ChatResponse, error) {
	if model == "" {
		model = o.model
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs := make([]openAIMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openAIMessage{Role: m.Role, Content: m.Content}
	}
	reqBody := openAIRequest{Model: model, Messages: msgs, Temperature: o.temperature}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "openai", Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Error != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "openai", Code: "inference_error", Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return llmbatch.ChatResponse{}, fmt.Errorf("no response from OpenAI")
	}
	return llmbatch.ChatResponse{Content: apiResp.Choices[0].Message.Content}, nil
}

// Chat generalizes GeminiAdapter's SendBatch HTTP mechanics into llmbatch.Client. Gemini
// has no distinct system role in the REST v1beta contents array, so the system message is
// folded into the leading user turn, matching SendBatch's own "systemPrompt + payload"
// concatenation.
func (g *GeminiAdapter) Chat(ctx context.Context, model string, messages []llmbatch.Message, timeout time.Duration) (llmbatch.ChatResponse, error) {
	if model == "" {
		model = g.model
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var combined string
	for _, m := range messages {
		if combined != "" {
			combined += "\n\n"
		}
		combined += m.Content
	}
	reqBody := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: combined}}}},
		GenerationConfig: geminiGenConfig{Temperature: g.temperature},
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	req, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "gemini", Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Error != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "gemini", Code: "inference_error", Message: apiResp.Error.Message}
	}
	if len(apiResp.Candidates) == 0 {
		return llmbatch.ChatResponse{}, fmt.Errorf("no candidates in response")
	}
	var content string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		content += part.Text
	}
	return llmbatch.ChatResponse{Content: content}, nil
}

// Chat generalizes OpenRouterAdapter's SendBatch HTTP mechanics into llmbatch.Client.
func (r *OpenRouterAdapter) Chat(ctx context.Context, model string, messages []llmbatch.Message, timeout time.Duration) (llmbatch.ChatResponse, error) {
	if model == "" {
		model = r.model
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs := make([]openRouterMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openRouterMessage{Role: m.Role, Content: m.Content}
	}
	reqBody := openRouterRequest{Model: model, Messages: msgs, Temperature: r.temperature}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, "POST", r.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "openrouter", Code: "network_error", Message: err.Error(), Retry: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp openRouterResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return llmbatch.ChatResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Error != nil {
		return llmbatch.ChatResponse{}, &ProviderError{Provider: "openrouter", Code: "inference_error", Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return llmbatch.ChatResponse{}, fmt.Errorf("no response from OpenRouter")
	}
	return llmbatch.ChatResponse{Content: apiResp.Choices[0].Message.Content}, nil
}
