// File: internal/faq/faq.go
package faq

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

//go:embed default_faq.yaml
var defaultFAQ []byte

var ErrUnknownItem = errors.New("unknown FAQ item")

// Item is one question with its answer. Answer is Markdown; HTML is filled by Render.
type Item struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"-"`
	HTML     string `yaml:"-" json:"answer_html"`
}

type document struct {
	Items []Item `yaml:"items"`
}

// Load reads items from a YAML file, or the built-in FAQ when path is empty.
func Load(path string) ([]Item, error) {
	raw := defaultFAQ
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read FAQ file: %w", err)
		}
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]Item, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse FAQ: %w", err)
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("FAQ has no items")
	}
	seen := make(map[string]bool, len(doc.Items))
	for i, it := range doc.Items {
		if it.ID == "" || it.Question == "" {
			return nil, fmt.Errorf("FAQ item %d needs an id and a question", i)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate FAQ item %q", it.ID)
		}
		seen[it.ID] = true
	}
	return doc.Items, nil
}

// Render converts every answer to sanitised HTML.
func Render(items []Item) ([]Item, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy := bluemonday.UGCPolicy()

	out := make([]Item, len(items))
	for i, it := range items {
		var buf bytes.Buffer
		if err := md.Convert([]byte(it.Answer), &buf); err != nil {
			return nil, fmt.Errorf("failed to render FAQ item %q: %w", it.ID, err)
		}
		it.HTML = policy.Sanitize(buf.String())
		out[i] = it
	}
	return out, nil
}

// Panel is an item together with whether it is expanded.
type Panel struct {
	Item
	Open bool `json:"open"`
}

// Accordion allows at most one open item.
type Accordion struct {
	items []Item
	index map[string]int

	mu   sync.RWMutex
	open string
}

func NewAccordion(items []Item) *Accordion {
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	return &Accordion{items: items, index: index}
}

// Toggle opens id and closes every other item, or closes id when it was the open one.
// It returns the ID left open, "" when everything is closed.
func (a *Accordion) Toggle(id string) (string, error) {
	if _, ok := a.index[id]; !ok {
		return "", ErrUnknownItem
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open == id {
		a.open = ""
	} else {
		a.open = id
	}
	return a.open, nil
}

func (a *Accordion) OpenID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.open
}

func (a *Accordion) Panels() []Panel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	panels := make([]Panel, len(a.items))
	for i, it := range a.items {
		panels[i] = Panel{Item: it, Open: it.ID == a.open}
	}
	return panels
}
