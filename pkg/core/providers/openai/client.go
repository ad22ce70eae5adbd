package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// doRequest sends a non-streaming request.
func (p *Provider) doRequest(ctx context.Context, apiKey string, req *chatRequest) ([]byte, error) {
	body, err := p.marshalRequest(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatCompletionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	p.setHeaders(httpReq, apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, p.parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return respBody, nil
}

// marshalRequest encodes req, renaming the max tokens field when the vendor
// expects the legacy "max_tokens" name.
func (p *Provider) marshalRequest(req *chatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if p.maxTokensField == MaxTokensFieldMaxCompletionTokens {
		return body, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if v, ok := fields[string(MaxTokensFieldMaxCompletionTokens)]; ok {
		delete(fields, string(MaxTokensFieldMaxCompletionTokens))
		fields[string(p.maxTokensField)] = v
	}
	return json.Marshal(fields)
}

// setHeaders sets the required API headers.
func (p *Provider) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")

	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func (p *Provider) chatCompletionsURL() string {
	return strings.TrimRight(p.baseURL, "/") + "/chat/completions"
}
