package bot

import (
	"testing"
	"time"

	"herald/internal/transport"
)

func TestParseDelay(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"10m", 10 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{" 30M ", 30 * time.Minute},
	}
	for _, tc := range cases {
		got, err := ParseDelay(tc.in)
		if err != nil {
			t.Errorf("ParseDelay(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDelay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDelayRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "10", "m", "10s", "2h30m", "-5m", "1w", "abc"} {
		if _, err := ParseDelay(in); err == nil {
			t.Errorf("ParseDelay(%q): want error", in)
		}
	}
}

func TestParseButtons(t *testing.T) {
	text := "/send\nDocs | https://example.com/docs\nChat|http://example.com/chat"
	buttons, rejected := ParseButtons(text)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejected lines: %v", rejected)
	}
	want := []transport.Button{
		{Label: "Docs", URL: "https://example.com/docs"},
		{Label: "Chat", URL: "http://example.com/chat"},
	}
	if len(buttons) != len(want) {
		t.Fatalf("want %v, got %v", want, buttons)
	}
	for i := range want {
		if buttons[i] != want[i] {
			t.Fatalf("button %d: want %+v, got %+v", i, want[i], buttons[i])
		}
	}
}

func TestParseButtonsRejectsMalformedLines(t *testing.T) {
	text := "/send\nno separator here\nFTP | ftp://example.com\nOK | https://example.com\n\n"
	buttons, rejected := ParseButtons(text)
	if len(buttons) != 1 || buttons[0].Label != "OK" {
		t.Fatalf("want only the valid button, got %v", buttons)
	}
	if len(rejected) != 2 {
		t.Fatalf("want 2 rejected lines, got %v", rejected)
	}
}

func TestParseButtonsCommandOnly(t *testing.T) {
	buttons, rejected := ParseButtons("/send")
	if buttons != nil || rejected != nil {
		t.Fatalf("want no buttons for a bare command, got %v / %v", buttons, rejected)
	}
}
