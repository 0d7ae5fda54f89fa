// File: internal/domain/plan.go
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Plan is a named hardware build offered on the site.
type Plan struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Hardware string `json:"hardware" yaml:"hardware"` // Sent verbatim as the user content
}

// Prompt is what gets sent to the model for one suggestion call.
type Prompt struct {
	SystemInstruction string
	UserContent       string
}

const DefaultSystemInstruction = "Você é um especialista em hardware de PC gamer. Seu tom é animador, confiável e direto " +
	"(linguagem gamer, mas sem exageros). Dado uma lista de hardware, gere uma breve análise (cerca de 2-3 frases curtas) " +
	"de quais tipos de jogos e qual performance (ex: 1080p, 1440p, 4K, 60fps+, high/ultra) o usuário pode esperar. " +
	"Foque nos benefícios reais para o jogador."

// FallbackMessage is what users see whenever a suggestion cannot be produced.
const FallbackMessage = "Desculpe, não foi possível gerar a análise. Tente novamente."

// DefaultPlans is the catalog the storefront launched with.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:       "basic",
			Name:     "Básico",
			Hardware: "Hardware: Processador Ryzen 5 5500, Placa de vídeo RX580, 16GB RAM 3200MHZ, SSD 512GB Sata.",
		},
		{
			ID:       "mid",
			Name:     "Intermediário",
			Hardware: "Hardware: Processador Ryzen 5 7600X, Placa de vídeo RTX 5060 Ti, 16GB RAM 5600MHz, SSD 1TB M.2.",
		},
		{
			ID:       "pro",
			Name:     "Pro",
			Hardware: "Hardware: Processador Ryzen 7 7800X3D, Placa de vídeo RTX 5070, 32GB RAM 6000MHz, SSD Kingston Fury 1TB.",
		},
	}
}

// Catalog is the read-only plan table plus the system instruction shared by every plan.
// Build it once at start-up and share it freely.
type Catalog struct {
	systemInstruction string
	fallback          string
	plans             map[string]Plan
	order             []string
}

type CatalogOption func(*Catalog)

// WithFallback replaces FallbackMessage for this catalog. Blank values are ignored.
func WithFallback(msg string) CatalogOption {
	return func(c *Catalog) {
		if strings.TrimSpace(msg) != "" {
			c.fallback = msg
		}
	}
}

func NewCatalog(systemInstruction string, plans []Plan, opts ...CatalogOption) (*Catalog, error) {
	if strings.TrimSpace(systemInstruction) == "" {
		return nil, errors.New("system instruction is required")
	}
	if len(plans) == 0 {
		return nil, errors.New("at least one plan is required")
	}
	c := &Catalog{
		systemInstruction: systemInstruction,
		fallback:          FallbackMessage,
		plans:             make(map[string]Plan, len(plans)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range plans {
		if p.ID == "" {
			return nil, errors.New("plan id is required")
		}
		if strings.TrimSpace(p.Hardware) == "" {
			return nil, fmt.Errorf("plan %q has no hardware description", p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %q is defined twice", p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// DefaultCatalog never fails; the built-in plans are valid.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSystemInstruction, DefaultPlans())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) SystemInstruction() string {
	return c.systemInstruction
}

// FallbackMessage is the text shown in place of a suggestion that could not be produced.
func (c *Catalog) FallbackMessage() string {
	return c.fallback
}

func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Plans returns a copy in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// IDs returns the plan identifiers sorted alphabetically.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	sort.Strings(ids)
	return ids
}

// PromptFor builds a fresh prompt for the plan.
func (c *Catalog) PromptFor(id string) (Prompt, bool) {
	p, ok := c.plans[id]
	if !ok {
		return Prompt{}, false
	}
	return Prompt{SystemInstruction: c.systemInstruction, UserContent: p.Hardware}, true
}
