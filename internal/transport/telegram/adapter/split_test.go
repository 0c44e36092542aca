package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	kit "deadlinebot/internal/transport"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := splitText("", 10, "")
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("got %q", got)
	}
	got = splitText("привет", 10, "")
	if len(got) != 1 || got[0] != "привет" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("я", 7)
	s := strings.Join([]string{line, line, line, line}, "\n")
	got := splitText(s, 20, "")
	for i, c := range got {
		if n := utf8.RuneCountInString(c); n > 20 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d keeps a boundary newline: %q", i, c)
		}
	}
	if strings.Join(got, "\n") != s {
		t.Fatalf("chunks do not reassemble: %q", got)
	}
}

func TestSplitTextHTMLTag(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 15) + "<b>bold</b>"
	got := splitText(s, 17, "HTML")
	if got[0] != strings.Repeat("a", 15) {
		t.Fatalf("tag was cut: %q", got)
	}
	if !strings.HasPrefix(got[1], "<b>") {
		t.Fatalf("second chunk %q", got[1])
	}
}

func TestCommandsHashStable(t *testing.T) {
	t.Parallel()
	a := []kit.BotCommand{{Command: "start", Description: "menu"}}
	b := []kit.BotCommand{{Command: "start", Description: "menu"}}
	c := []kit.BotCommand{{Command: "start", Description: "other"}}
	if commandsHash(a) != commandsHash(b) {
		t.Fatalf("equal lists hash differently")
	}
	if commandsHash(a) == commandsHash(c) {
		t.Fatalf("different lists hash equally")
	}
}
