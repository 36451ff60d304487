package sanitize

import (
	"strings"
	"testing"
)

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		"<b>bold</b> and <i>italic</i>",
		`<span style="color: red;">warm</span>`,
		`<img src="diagram.png" alt="diagram">`,
		`<script>alert(1)</script>hello`,
		`<a href="https://example.com" onclick="steal()">link</a>`,
		`<div style="font-size: 12px; position: absolute;">layout</div>`,
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestCleanStripsDangerousMarkup(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		bad   string
		keeps string
	}{
		{"script", `<script>alert(1)</script>visible`, "script", "visible"},
		{"event handler", `<a href="https://x.test" onclick="x()">link</a>`, "onclick", "link"},
		{"iframe", `<iframe src="https://x.test"></iframe>note`, "iframe", "note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Clean(tt.in)
			if strings.Contains(out, tt.bad) {
				t.Fatalf("output %q still contains %q", out, tt.bad)
			}
			if !strings.Contains(out, tt.keeps) {
				t.Fatalf("output %q lost %q", out, tt.keeps)
			}
		})
	}
}

func TestCleanFiltersStyleProperties(t *testing.T) {
	out := Clean(`<span style="color: navy; position: fixed;">x</span>`)
	if !strings.Contains(out, "color: navy") {
		t.Fatalf("allowed color dropped: %q", out)
	}
	if strings.Contains(out, "position") {
		t.Fatalf("disallowed property kept: %q", out)
	}
}

func TestValidColor(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"red", true},
		{"rebeccapurple", true},
		{"currentcolor", true},
		{"transparent", true},
		{"#fff", true},
		{"#a1b2c3", true},
		{"rgb(1, 2, 3)", true},
		{"rgba(1, 2, 3, 0.5)", true},
		{"hsl(120, 50%, 50%)", true},
		{"hsla(120, 50%, 50%, 0.3)", true},
		{"url(javascript:alert(1))", false},
		{"expression(alert(1))", false},
		{"cornflowerblue", false},
		{"#ggg", false},
	}
	for _, tt := range tests {
		if got := validColor(tt.value); got != tt.want {
			t.Errorf("validColor(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
