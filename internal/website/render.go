package website

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studio/internal/providers/pexels"
)

func titleCase(s, lang string) string {
	tag := language.Make(langCode(lang))
	return cases.Title(tag, cases.NoLower).String(strings.TrimSpace(s))
}

type pageData struct {
	Plan   Plan
	Hero   *pexels.Photo
	Images map[string]pexels.Photo
	Lang   string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Plan.Name}}</title>
<meta name="description" content="{{.Plan.Tagline}}">
<link rel="stylesheet" href="styles.css">
</head>
<body>
<header class="hero"{{with .Hero}} style="background-image:url('{{.URL}}')"{{end}}>
  <div class="hero-inner">
    <p class="brand">{{.Plan.Name}}</p>
    <h1>{{.Plan.Hero.Headline}}</h1>
    <p>{{.Plan.Hero.Subheadline}}</p>
    <a class="cta" href="#contact">{{.Plan.Hero.CTA}}</a>
  </div>
</header>
<main>
{{- range .Plan.Sections}}
<section id="{{.ID}}" class="section section-{{.Type}}">
  <h2>{{.Title}}</h2>
  <p>{{.Body}}</p>
  {{- if .Items}}
  <ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}
  {{- with index $.Images .ID}}
  <figure><img src="{{.URL}}" alt="{{.Alt}}" loading="lazy"><figcaption>Photo by {{.Photographer}} on Pexels</figcaption></figure>
  {{- end}}
</section>
{{- end}}
</main>
<footer><p>{{.Plan.Name}} · {{.Plan.Tagline}}</p></footer>
</body>
</html>
`))

func renderHTML(plan Plan, hero *pexels.Photo, images map[string]pexels.Photo, lang string) ([]byte, error) {
	if lang == "" {
		lang = "en"
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, pageData{Plan: plan, Hero: hero, Images: images, Lang: langCode(lang)}); err != nil {
		return nil, fmt.Errorf("website: render html: %w", err)
	}
	return buf.Bytes(), nil
}

var languageNames = map[string]language.Tag{
	"english":          language.English,
	"indonesian":       language.Indonesian,
	"bahasa indonesia": language.Indonesian,
	"malay":            language.Malay,
	"spanish":          language.Spanish,
	"japanese":         language.Japanese,
}

// langCode turns "Indonesian" or "id-ID" into a BCP 47 base language.
func langCode(lang string) string {
	lang = strings.TrimSpace(lang)
	tag, ok := languageNames[strings.ToLower(lang)]
	if !ok {
		var err error
		if tag, err = language.Parse(lang); err != nil {
			return "en"
		}
	}
	base, _ := tag.Base()
	return base.String()
}

func renderCSS(p Palette) []byte {
	return []byte(fmt.Sprintf(`:root{--primary:%s;--secondary:%s;--accent:%s;--bg:%s;--text:%s}
*{box-sizing:border-box}
body{margin:0;font-family:system-ui,-apple-system,sans-serif;background:var(--bg);color:var(--text);line-height:1.6}
.hero{min-height:60vh;display:flex;align-items:center;justify-content:center;text-align:center;background:var(--primary) center/cover no-repeat;color:#fff}
.hero-inner{background:rgba(0,0,0,.45);padding:2rem 3rem;border-radius:12px;max-width:720px}
.brand{letter-spacing:.2em;text-transform:uppercase;font-size:.85rem}
.cta{display:inline-block;margin-top:1rem;padding:.75rem 1.5rem;background:var(--accent);color:var(--text);border-radius:999px;text-decoration:none;font-weight:600}
main{max-width:960px;margin:0 auto;padding:2rem 1rem}
.section{padding:2.5rem 0;border-bottom:1px solid var(--secondary)}
.section h2{color:var(--primary)}
figure{margin:1.5rem 0 0}
figure img{width:100%%;border-radius:8px}
figcaption{font-size:.75rem;color:var(--secondary)}
footer{text-align:center;padding:2rem;color:var(--secondary)}
`, p.Primary, p.Secondary, p.Accent, p.Background, p.Text))
}
