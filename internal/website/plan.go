package website

import (
	"fmt"
	"regexp"
	"strings"

	"studio/internal/providers/genai"
)

// Brief is what the merchant tells us about the business.
type Brief struct {
	BusinessName string `json:"business_name"`
	Description  string `json:"description"`
	Audience     string `json:"audience,omitempty"`
	Style        string `json:"style,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Plan is the structured site outline returned by Gemini.
type Plan struct {
	Name     string    `json:"name"`
	Tagline  string    `json:"tagline"`
	Palette  Palette   `json:"palette"`
	Hero     Hero      `json:"hero"`
	Sections []Section `json:"sections"`
}

type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

type Hero struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CTA         string `json:"cta"`
	ImageQuery  string `json:"image_query"`
}

type Section struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Items      []string `json:"items,omitempty"`
	ImageQuery string   `json:"image_query,omitempty"`
}

var sectionTypes = []string{"about", "features", "products", "testimonials", "gallery", "contact"}

func str(desc string) *genai.Schema { return &genai.Schema{Type: "string", Description: desc} }

// planSchema constrains Gemini's structured output to Plan.
var planSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"name":    str("business name as shown in the header"),
		"tagline": str("one short sentence"),
		"palette": {
			Type: "object",
			Properties: map[string]*genai.Schema{
				"primary":    str("hex colour"),
				"secondary":  str("hex colour"),
				"accent":     str("hex colour"),
				"background": str("hex colour"),
				"text":       str("hex colour"),
			},
			Required: []string{"primary", "secondary", "accent", "background", "text"},
		},
		"hero": {
			Type: "object",
			Properties: map[string]*genai.Schema{
				"headline":    str(""),
				"subheadline": str(""),
				"cta":         str("call to action button label"),
				"image_query": str("English stock photo search query"),
			},
			Required: []string{"headline", "subheadline", "cta", "image_query"},
		},
		"sections": {
			Type: "array",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"id":          str("kebab-case identifier"),
					"type":        {Type: "string", Enum: sectionTypes},
					"title":       str(""),
					"body":        str(""),
					"items":       {Type: "array", Items: str("")},
					"image_query": str("English stock photo search query, empty when no image fits"),
				},
				Required: []string{"id", "type", "title", "body"},
			},
		},
	},
	Required: []string{"name", "tagline", "palette", "hero", "sections"},
}

const planSystem = `You design one-page websites for small businesses.
Return only the JSON object described by the schema.
Write all visible copy in the requested language; image queries are always English.
Use between three and six sections and keep every body under 80 words.`

func planPrompt(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\n", b.BusinessName)
	fmt.Fprintf(&sb, "Description: %s\n", b.Description)
	if b.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", b.Audience)
	}
	if b.Style != "" {
		fmt.Fprintf(&sb, "Visual style: %s\n", b.Style)
	}
	lang := b.Language
	if lang == "" {
		lang = "English"
	}
	fmt.Fprintf(&sb, "Language: %s\n", lang)
	return sb.String()
}

var (
	hexColor   = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
	nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)
)

var defaultPalette = Palette{Primary: "#1F2937", Secondary: "#4B5563", Accent: "#F59E0B", Background: "#FFFFFF", Text: "#111827"}

// normalize fills gaps in model output so rendering never has to.
func (p *Plan) normalize(b Brief) {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = b.BusinessName
	}
	p.Name = titleCase(p.Name, b.Language)
	fix := func(c *string, fallback string) {
		if !hexColor.MatchString(strings.TrimSpace(*c)) {
			*c = fallback
		}
	}
	fix(&p.Palette.Primary, defaultPalette.Primary)
	fix(&p.Palette.Secondary, defaultPalette.Secondary)
	fix(&p.Palette.Accent, defaultPalette.Accent)
	fix(&p.Palette.Background, defaultPalette.Background)
	fix(&p.Palette.Text, defaultPalette.Text)

	seen := map[string]int{}
	for i := range p.Sections {
		s := &p.Sections[i]
		id := slug(s.ID)
		if id == "" {
			id = slug(s.Title)
		}
		if id == "" {
			id = fmt.Sprintf("section-%d", i+1)
		}
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n+1)
		} else {
			seen[id] = 1
		}
		s.ID = id
	}
}

func slug(s string) string {
	return strings.Trim(nonSlugRun.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
