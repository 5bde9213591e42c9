package aichat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DifyClient talks to a Dify chat application. Streaming responses are
// relayed line by line to the caller so the HTTP handler can forward
// them as server-sent events while the answer is still being produced.
type DifyClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewDifyClient(baseURL, apiKey string) *DifyClient {
	return &DifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// No overall timeout: a chat stream stays open for as long as
		// the model is generating. Cancellation comes from the context.
		http: &http.Client{},
	}
}

// StreamResult is what survives a completed stream: the upstream
// conversation handle and the assembled assistant answer.
type StreamResult struct {
	ConversationID string
	Answer         string
}

type difyEvent struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Message        string `json:"message"`
	Code           string `json:"code"`
}

// StreamChat posts a chat message in streaming mode and invokes emit with
// the raw JSON payload of every upstream event. Answer fragments from
// message events are accumulated into the result. The stream ends at the
// message_end event; an upstream error event aborts with an error after
// being relayed.
func (c *DifyClient) StreamChat(ctx context.Context, query, conversationID, user string, emit func(data []byte) error) (*StreamResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":           query,
		"response_mode":   "streaming",
		"user":            user,
		"conversation_id": conversationID,
		"inputs":          map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat-messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dify responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	result := &StreamResult{ConversationID: conversationID}
	var answer strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "null" {
			continue
		}

		var ev difyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Malformed frame, skip it and keep reading.
			continue
		}
		if ev.ConversationID != "" {
			result.ConversationID = ev.ConversationID
		}

		if err := emit([]byte(data)); err != nil {
			return nil, err
		}

		switch ev.Event {
		case "message":
			answer.WriteString(ev.Answer)
		case "message_end":
			result.Answer = answer.String()
			return result, nil
		case "error":
			msg := ev.Message
			if msg == "" {
				msg = ev.Code
			}
			return nil, fmt.Errorf("dify stream error: %s", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dify stream read: %w", err)
	}

	// Upstream closed without a message_end frame. Keep whatever answer
	// fragments arrived.
	result.Answer = answer.String()
	return result, nil
}

// Conversations proxies Dify's conversation listing for one user.
// The response is returned as-is (limit, has_more, data).
func (c *DifyClient) Conversations(ctx context.Context, user, lastID string, limit int) (map[string]interface{}, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := url.Values{}
	q.Set("user", user)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort_by", "-updated_at")
	if lastID != "" {
		q.Set("last_id", lastID)
	}
	u := c.baseURL + "/v1/conversations?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("dify responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
