// Package catalog is the in-memory product list and FAQ the voice assistant
// searches when it recommends products or answers questions.
package catalog

import (
	"slices"
	"sort"
	"strings"

	"studio/internal/domain"
)

const (
	weightExactName   = 10
	weightNameToken   = 5
	weightTagToken    = 3
	weightDescToken   = 1
	weightCategory    = 4
	defaultMatchLimit = 5
)

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	products  []domain.Product
	byID      map[string]domain.Product
	knowledge []domain.KnowledgeEntry
}

// Match is a product with its relevance score.
type Match struct {
	Product domain.Product `json:"product"`
	Score   int            `json:"score"`
}

func New(products []domain.Product, knowledge []domain.KnowledgeEntry) *Catalog {
	c := &Catalog{
		products:  slices.Clone(products),
		byID:      make(map[string]domain.Product, len(products)),
		knowledge: slices.Clone(knowledge),
	}
	for _, p := range products {
		c.byID[p.ID] = p
	}
	return c
}

// Default returns the catalog bundled with the service.
func Default() *Catalog {
	return New(seedProducts, seedKnowledge)
}

func (c *Catalog) Product(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// FindByName resolves a product from an id or a spoken name. Blank input
// and input without searchable words resolve to nothing.
func (c *Catalog) FindByName(nameOrID string) (domain.Product, bool) {
	if p, ok := c.byID[nameOrID]; ok {
		return p, true
	}
	want := Fold(nameOrID)
	if want == "" || len(Tokens(nameOrID)) == 0 {
		return domain.Product{}, false
	}
	for _, p := range c.products {
		if Fold(p.Name) == want {
			return p, true
		}
	}
	if matches := c.Search(nameOrID, "", 1); len(matches) > 0 {
		return matches[0].Product, true
	}
	return domain.Product{}, false
}

func (c *Catalog) Products() []domain.Product {
	return slices.Clone(c.products)
}

// Categories lists the distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range c.products {
		k := Fold(p.Category)
		if !seen[k] {
			seen[k] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Search ranks products by weighted keyword overlap with query. Products that
// score zero are dropped and ties break by name. An empty query filters by
// category only.
func (c *Catalog) Search(query, category string, limit int) []Match {
	if limit <= 0 {
		limit = defaultMatchLimit
	}
	category = Fold(category)
	queryTokens := Tokens(query)
	folded := Fold(query)

	var matches []Match
	for _, p := range c.products {
		inCategory := category != "" && Fold(p.Category) == category
		if len(queryTokens) == 0 {
			if category == "" || inCategory {
				matches = append(matches, Match{Product: p})
			}
			continue
		}
		score := scoreProduct(p, folded, queryTokens)
		if inCategory {
			score += weightCategory
		}
		if score > 0 {
			matches = append(matches, Match{Product: p, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return Fold(matches[i].Product.Name) < Fold(matches[j].Product.Name)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func scoreProduct(p domain.Product, foldedQuery string, queryTokens []string) int {
	score := 0
	if Fold(p.Name) == foldedQuery {
		score += weightExactName
	}
	name := tokenSet(p.Name)
	tags := tokenSet(p.Tags...)
	desc := tokenSet(p.Description)
	category := tokenSet(p.Category)
	for _, tok := range queryTokens {
		if _, ok := name[tok]; ok {
			score += weightNameToken
		}
		if _, ok := tags[tok]; ok {
			score += weightTagToken
		}
		if _, ok := desc[tok]; ok {
			score += weightDescToken
		}
		if _, ok := category[tok]; ok {
			score += weightCategory
		}
	}
	return score
}

// KnowledgeBase returns FAQ entries whose topic or keywords match topic. An
// empty topic returns every entry.
func (c *Catalog) KnowledgeBase(topic string) []domain.KnowledgeEntry {
	topicTokens := Tokens(topic)
	if len(topicTokens) == 0 {
		return slices.Clone(c.knowledge)
	}
	var out []domain.KnowledgeEntry
	for _, e := range c.knowledge {
		keys := tokenSet(append([]string{e.Topic}, e.Keywords...)...)
		for _, tok := range topicTokens {
			if _, ok := keys[tok]; ok {
				out = append(out, e)
				break
			}
		}
	}
	if len(out) == 0 {
		folded := Fold(topic)
		for _, e := range c.knowledge {
			if strings.Contains(Fold(e.Answer), folded) {
				out = append(out, e)
			}
		}
	}
	return out
}
