package aichat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseServer(t *testing.T, frames []string, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat-messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("Authorization = %q, want %q", got, wantAuth)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
	}))
}

func TestStreamChat_AccumulatesAnswer(t *testing.T) {
	srv := sseServer(t, []string{
		`{"event":"message","conversation_id":"conv-1","answer":"Take "}`,
		`{"event":"message","conversation_id":"conv-1","answer":"with food."}`,
		`{"event":"message_end","conversation_id":"conv-1"}`,
	}, "Bearer app-key")
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	var relayed []string
	result, err := client.StreamChat(context.Background(), "how should I take ibuprofen", "", "user-1",
		func(data []byte) error {
			relayed = append(relayed, string(data))
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if result.Answer != "Take with food." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if result.ConversationID != "conv-1" {
		t.Errorf("ConversationID = %q", result.ConversationID)
	}
	if len(relayed) != 3 {
		t.Errorf("relayed %d frames, want 3", len(relayed))
	}
}

func TestStreamChat_SkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t, []string{
		`not json at all`,
		`null`,
		`{"event":"message","conversation_id":"conv-2","answer":"ok"}`,
		`{"event":"message_end"}`,
	}, "Bearer app-key")
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	var relayed int
	result, err := client.StreamChat(context.Background(), "hi", "", "user-1",
		func([]byte) error { relayed++; return nil })
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if result.Answer != "ok" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if relayed != 2 {
		t.Errorf("relayed %d frames, want 2", relayed)
	}
}

func TestStreamChat_UpstreamErrorEvent(t *testing.T) {
	srv := sseServer(t, []string{
		`{"event":"error","message":"quota exhausted"}`,
	}, "Bearer app-key")
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	_, err := client.StreamChat(context.Background(), "hi", "", "user-1",
		func([]byte) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("err = %v, want upstream error message", err)
	}
}

func TestStreamChat_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"invalid_api_key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewDifyClient(srv.URL, "bad-key")
	_, err := client.StreamChat(context.Background(), "hi", "", "user-1",
		func([]byte) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want 401 error", err)
	}
}

func TestStreamChat_EmitFailureAborts(t *testing.T) {
	srv := sseServer(t, []string{
		`{"event":"message","answer":"a"}`,
		`{"event":"message","answer":"b"}`,
		`{"event":"message_end"}`,
	}, "Bearer app-key")
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	wantErr := fmt.Errorf("client went away")
	_, err := client.StreamChat(context.Background(), "hi", "", "user-1",
		func([]byte) error { return wantErr })
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("err = %v, want emit failure", err)
	}
}

func TestConversations_EscapesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("user"); got != "user one&two" {
			t.Errorf("user = %q", got)
		}
		if got := q.Get("last_id"); got != "id with spaces" {
			t.Errorf("last_id = %q", got)
		}
		if got := q.Get("limit"); got != "20" {
			t.Errorf("limit = %q", got)
		}
		if got := q.Get("sort_by"); got != "-updated_at" {
			t.Errorf("sort_by = %q", got)
		}
		fmt.Fprint(w, `{"limit":20,"has_more":false,"data":[]}`)
	}))
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	out, err := client.Conversations(context.Background(), "user one&two", "id with spaces", 0)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if _, ok := out["data"]; !ok {
		t.Errorf("response missing data field: %v", out)
	}
}

func TestStreamChat_SendsConversationID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		if !strings.Contains(string(body), `"conversation_id":"conv-9"`) {
			t.Errorf("body missing conversation id: %s", body)
		}
		fmt.Fprint(w, "data: {\"event\":\"message_end\",\"conversation_id\":\"conv-9\"}\n\n")
	}))
	defer srv.Close()

	client := NewDifyClient(srv.URL, "app-key")
	result, err := client.StreamChat(context.Background(), "hi", "conv-9", "user-1",
		func([]byte) error { return nil })
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if result.ConversationID != "conv-9" {
		t.Errorf("ConversationID = %q", result.ConversationID)
	}
}
