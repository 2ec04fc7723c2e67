package gemini

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestNormalizeHistory_MergesSystemIntoFirstUserTurn(t *testing.T) {
	contents := normalizeHistory([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "You are a cook."},
		{Role: domain.RoleUser, Content: "chicken soup?"},
	})

	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("role %s", contents[0].Role)
	}
	text := contents[0].Parts[0].Text
	if !strings.Contains(text, "You are a cook.") || !strings.Contains(text, "chicken soup?") {
		t.Errorf("system prompt not merged: %q", text)
	}
}

func TestNormalizeHistory_MergesConsecutiveSameRoleTurns(t *testing.T) {
	contents := normalizeHistory([]domain.ChatMessage{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleUser, Content: "second"},
		{Role: domain.RoleAssistant, Content: "reply"},
		{Role: domain.RoleUser, Content: "third"},
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if len(contents[0].Parts) != 2 {
		t.Errorf("consecutive user turns not merged: %d parts", len(contents[0].Parts))
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("assistant must map to model role, got %s", contents[1].Role)
	}
}

func TestNormalizeHistory_SystemOnly(t *testing.T) {
	contents := normalizeHistory([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "instructions"},
	})

	if len(contents) != 1 || contents[0].Role != genai.RoleUser {
		t.Fatalf("system-only history must become one user turn, got %+v", contents)
	}
}

func TestNormalizeHistory_Empty(t *testing.T) {
	if contents := normalizeHistory(nil); len(contents) != 0 {
		t.Errorf("expected no contents, got %d", len(contents))
	}
}

func TestSentinelForStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, domain.ErrProviderAuth},
		{403, domain.ErrProviderAuth},
		{429, domain.ErrProviderBusy},
		{500, domain.ErrProviderBusy},
		{400, domain.ErrProviderNetwork},
	}

	for _, tc := range cases {
		if got := sentinelForStatus(tc.status); !errors.Is(got, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, got, tc.want)
		}
	}
}
