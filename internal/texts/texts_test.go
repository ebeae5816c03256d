package texts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/swifttype/internal/generator"
)

func TestPassagesEmbedded(t *testing.T) {
	ps := Passages()
	if len(ps) < 2 {
		t.Fatalf("expected several passages, got %d", len(ps))
	}
	for i, p := range ps {
		if strings.Contains(p, "\n") {
			t.Fatalf("passage %d spans lines", i)
		}
	}
}

func TestProviderPassages(t *testing.T) {
	p, err := newProvider(Options{}, generator.NewSeeded(1))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	text := p.Random()
	if text.Source != PassageSource || text.Text == "" {
		t.Fatalf("unexpected text %+v", text)
	}
}

func TestProviderWords(t *testing.T) {
	p, err := newProvider(Options{Source: "words", Words: 12}, generator.NewSeeded(1))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	text := p.Random()
	if text.Source != SourceWords {
		t.Fatalf("expected words source, got %q", text.Source)
	}
	if n := len(strings.Fields(text.Text)); n != 12 {
		t.Fatalf("expected 12 words, got %d", n)
	}
}

func TestProviderCustomWordList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("zebra\nZebra\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := newProvider(Options{Source: "words", Words: 3, WordListPath: path}, generator.NewSeeded(1))
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if got := p.Random().Text; got != "zebra zebra zebra" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestProviderRejectsUnknownSource(t *testing.T) {
	if _, err := NewProvider(Options{Source: "poems"}); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}
