package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderCommitReviewedTemplate(t *testing.T) {
	approved, err := renderTemplate(commitReviewedEmailTemplate, CommitReviewedData{
		AppName:   "AnkiCollab",
		UserName:  "zoe",
		DeckName:  "Anatomy Basics",
		CommitID:  41,
		Approved:  true,
		Rationale: "fixed typos",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(approved, "Anatomy Basics") {
		t.Error("template should contain deck name")
	}
	if !strings.Contains(approved, "#41") {
		t.Error("template should contain commit id")
	}
	if !strings.Contains(approved, "approved") {
		t.Error("template should mention approval")
	}
	if !strings.Contains(approved, "fixed typos") {
		t.Error("template should contain rationale")
	}

	denied, err := renderTemplate(commitReviewedEmailTemplate, CommitReviewedData{
		AppName:  "AnkiCollab",
		UserName: "zoe",
		DeckName: "Anatomy Basics",
		CommitID: 41,
		Approved: false,
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(denied, "denied") {
		t.Error("template should mention denial")
	}
}

func TestRenderNewCommitTemplate(t *testing.T) {
	html, err := renderTemplate(newCommitEmailTemplate, NewCommitData{
		AppName:   "AnkiCollab",
		DeckName:  "Kanji",
		CommitID:  7,
		Rationale: "new vocab",
		ReviewURL: "https://example.com/review/7",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Kanji") {
		t.Error("template should contain deck name")
	}
	if !strings.Contains(html, "https://example.com/review/7") {
		t.Error("template should contain review URL")
	}
	if !strings.Contains(html, "new vocab") {
		t.Error("template should contain rationale")
	}
}
