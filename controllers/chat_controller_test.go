package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type fakeGenerator struct {
	reply string
	err   error
}

func (f fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

func TestChat(t *testing.T) {
	tests := []struct {
		name       string
		generator  *fakeGenerator
		message    string
		wantStatus int
		wantReply  string
	}{
		{
			name:       "answers through the generator",
			generator:  &fakeGenerator{reply: "  Never click unexpected links.  "},
			message:    "how do I spot a phishing email?",
			wantStatus: fiber.StatusOK,
			wantReply:  "Never click unexpected links.",
		},
		{
			name:       "empty message rejected",
			generator:  &fakeGenerator{reply: "unused"},
			message:    "",
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "generator failure surfaces as bad gateway",
			generator:  &fakeGenerator{err: errors.New("upstream down")},
			message:    "hello",
			wantStatus: fiber.StatusBadGateway,
		},
		{
			name:       "unconfigured generator",
			generator:  nil,
			message:    "hello",
			wantStatus: fiber.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := NewChatController(testLogger(), nil)
			if tt.generator != nil {
				cc.Generator = tt.generator
			}
			app := fiber.New()
			app.Post("/chat", cc.Chat)

			body, _ := json.Marshal(map[string]string{"message": tt.message})
			req := httptest.NewRequest("POST", "/chat", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantReply == "" {
				return
			}
			var out struct {
				Reply string `json:"reply"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if out.Reply != tt.wantReply {
				t.Errorf("reply = %q, want %q", out.Reply, tt.wantReply)
			}
		})
	}
}
