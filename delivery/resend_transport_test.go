package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResendTransport_Send(t *testing.T) {
	var got struct {
		From    string            `json:"from"`
		To      []string          `json:"to"`
		Subject string            `json:"subject"`
		HTML    string            `json:"html"`
		Text    string            `json:"text"`
		Headers map[string]string `json:"headers"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	tr := NewResendTransport("re_test", srv.URL+"/")
	id, err := tr.Send(context.Background(), Message{
		From:    "KFI <onboarding@resend.dev>",
		To:      "buyer@example.com",
		Subject: "Your download: Lucid",
		HTML:    "<p>hi</p>",
		Text:    "hi",
		Headers: map[string]string{"X-KFI-Template": "download-v2"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "email_123" {
		t.Fatalf("id = %q", id)
	}
	if len(got.To) != 1 || got.To[0] != "buyer@example.com" || got.Headers["X-KFI-Template"] != "download-v2" || got.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestResendTransport_ErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"statusCode":403,"name":"validation_error","message":"The send.kfimusic.com domain is not verified."}`))
	}))
	defer srv.Close()

	_, err := NewResendTransport("re_test", srv.URL).Send(context.Background(), Message{To: "a@b.c"})
	if err == nil || !strings.Contains(err.Error(), "domain is not verified") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestNewResendTransport_NoKey(t *testing.T) {
	if NewResendTransport("", "") != nil {
		t.Fatalf("expected nil transport without API key")
	}
}

func TestMessage_PlainText(t *testing.T) {
	msg := Message{HTML: `<p>Hello</p><a href="https://cdn.example/stems.zip">Download stems.zip</a>`}
	text := msg.PlainText()
	if !strings.Contains(text, "Hello") || !strings.Contains(text, "https://cdn.example/stems.zip") {
		t.Fatalf("derived text = %q", text)
	}

	msg.Text = "explicit"
	if got := msg.PlainText(); got != "explicit" {
		t.Fatalf("PlainText() = %q, want explicit text part", got)
	}
	if got := (Message{}).PlainText(); got != "" {
		t.Fatalf("empty message PlainText() = %q", got)
	}
}
