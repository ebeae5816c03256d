// Package texts supplies reference passages for typing tests.
package texts

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/verte-zerg/swifttype/internal/generator"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/wordlist"
)

// Sources accepted by Provider.
const (
	SourcePassages = "passages"
	SourceWords    = "words"
)

// PassageSource is the source label attached to embedded passages.
const PassageSource = "SwiftType"

const defaultWordCount = 120

var (
	//go:embed data/passages.txt
	passagesData string
	//go:embed data/words.txt
	wordsData string
)

// Options selects and shapes the text source.
type Options struct {
	Source       string
	Words        int
	CapsPct      float64
	PunctPct     float64
	PunctSet     string
	WordListPath string
}

// Provider hands out random reference texts.
type Provider struct {
	source   string
	passages []string
	words    []string
	genOpts  generator.Options
	gen      *generator.Generator
}

// NewProvider builds a Provider. A custom word list path overrides the
// embedded list for the words source.
func NewProvider(opts Options) (*Provider, error) {
	return newProvider(opts, generator.New())
}

func newProvider(opts Options, gen *generator.Generator) (*Provider, error) {
	source := strings.ToLower(strings.TrimSpace(opts.Source))
	if source == "" {
		source = SourcePassages
	}
	if source != SourcePassages && source != SourceWords {
		return nil, fmt.Errorf("unknown text source %q", opts.Source)
	}
	words, err := loadWords(opts.WordListPath)
	if err != nil {
		return nil, err
	}
	count := opts.Words
	if count <= 0 {
		count = defaultWordCount
	}
	return &Provider{
		source:   source,
		passages: Passages(),
		words:    words,
		gen:      gen,
		genOpts: generator.Options{
			Count:    count,
			CapsPct:  opts.CapsPct,
			PunctPct: opts.PunctPct,
			PunctSet: []rune(opts.PunctSet),
		},
	}, nil
}

func loadWords(path string) ([]string, error) {
	var (
		words []string
		err   error
	)
	if path != "" {
		words, err = wordlist.LoadWords(path)
	} else {
		words, err = wordlist.ParseWords(strings.NewReader(wordsData))
	}
	if err != nil {
		return nil, fmt.Errorf("load word list: %w", err)
	}
	words = wordlist.Apply(words, wordlist.FilterForLang("en"))
	if len(words) == 0 {
		return nil, fmt.Errorf("word list has no usable words")
	}
	return words, nil
}

// Passages returns the embedded passages.
func Passages() []string {
	var out []string
	for _, p := range strings.Split(passagesData, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Source reports the configured source.
func (p *Provider) Source() string {
	return p.source
}

// Random returns a reference text from the configured source.
func (p *Provider) Random() model.Text {
	if p.source == SourceWords {
		return model.Text{Text: p.gen.Sentence(p.words, p.genOpts), Source: SourceWords}
	}
	return p.Passage()
}

// Passage returns a random embedded passage.
func (p *Provider) Passage() model.Text {
	return model.Text{Text: p.passages[p.gen.Intn(len(p.passages))], Source: PassageSource}
}
