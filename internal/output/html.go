package output

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// reportTemplate is the built-in report layout, used when no external
// template directory is configured.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>ZotWatch Report - {{.GeneratedAt.Format "2006-01-02"}}</title>
  <style>
    body { font-family: system-ui, sans-serif; background: #f9fafb; margin: 0; color: #111827; }
    header { background: #fff; border-bottom: 1px solid #e5e7eb; padding: 1.5rem 2rem; }
    header p { color: #6b7280; font-size: 0.875rem; margin: 0.25rem 0 0; }
    main { max-width: 64rem; margin: 0 auto; padding: 2rem 1rem; }
    article { background: #fff; border: 1px solid #e5e7eb; border-radius: 0.5rem; padding: 1.5rem; margin-bottom: 1.5rem; }
    .badge { display: inline-block; padding: 0.125rem 0.625rem; border-radius: 9999px; font-size: 0.75rem; font-weight: 600; }
    .badge.must_read { background: #dcfce7; color: #166534; }
    .badge.consider { background: #fef9c3; color: #854d0e; }
    .badge.ignore { background: #f3f4f6; color: #1f2937; }
    .meta { color: #6b7280; font-size: 0.75rem; margin-left: 0.5rem; }
    h2 { font-size: 1.125rem; margin: 0.5rem 0; }
    h2 a { color: inherit; text-decoration: none; }
    h2 a:hover { color: #2563eb; }
    .authors { color: #4b5563; font-size: 0.875rem; }
    .abstract { color: #374151; font-size: 0.875rem; }
    .summary { background: #eff6ff; border-radius: 0.5rem; padding: 1rem; margin: 0.75rem 0; }
    .summary ul { margin: 0.5rem 0 0; padding-left: 1.25rem; font-size: 0.875rem; color: #1e40af; }
    .components { border-top: 1px solid #f3f4f6; margin-top: 1rem; padding-top: 1rem; font-size: 0.75rem; color: #6b7280; }
    .components span { margin-right: 1rem; }
    .match { color: #16a34a; }
  </style>
</head>
<body>
  <header>
    <h1>ZotWatch Recommendations</h1>
    <p>{{len .Works}} papers | Generated {{.GeneratedAt.Format "January 2, 2006 at 15:04 UTC"}}</p>
  </header>
  <main>
    {{range .Works}}
    <article>
      <div>
        <span class="badge {{.Label}}">{{labelText .Label}}</span>
        <span class="meta">Score: {{printf "%.3f" .Score}}</span>
        <span class="meta">{{.Source}}</span>
        <span class="meta">{{if .Published}}{{.Published.Format "2006-01-02"}}{{else}}Unknown date{{end}}</span>
        <span class="meta">{{if .Venue}}{{.Venue}}{{else}}Unknown venue{{end}}</span>
      </div>
      <h2><a href="{{if .URL}}{{.URL}}{{else}}#{{end}}">{{.Title}}</a></h2>
      <p class="authors">{{authorLine .Authors}}</p>
      {{if .Summary}}
      <div class="summary">
        <strong>AI Summary</strong>
        <ul>
          {{range .Summary.Bullets}}<li>{{.}}</li>
          {{end}}
        </ul>
      </div>
      {{else if .Abstract}}
      <p class="abstract">{{.Abstract}}</p>
      {{end}}
      <div class="components">
        <span>Similarity: {{printf "%.2f" .Similarity}}</span>
        <span>Recency: {{printf "%.2f" .RecencyScore}}</span>
        {{if gt .AuthorBonus 0.0}}<span class="match">Author Match</span>{{end}}
        {{if gt .VenueBonus 0.0}}<span class="match">Venue Match</span>{{end}}
      </div>
    </article>
    {{end}}
  </main>
</body>
</html>
`

var templateFuncs = template.FuncMap{
	"labelText": func(label work.Label) string {
		return strings.ReplaceAll(string(label), "_", " ")
	},
	"authorLine": func(authors []string) string {
		if len(authors) > 5 {
			return strings.Join(authors[:5], ", ") + " et al."
		}
		return strings.Join(authors, ", ")
	},
}

// reportData is the template context.
type reportData struct {
	Works       []work.RankedWork
	GeneratedAt time.Time
}

// HTMLReporter renders ranked works into a standalone HTML report.
type HTMLReporter struct {
	templateDir string
	logger      *zap.Logger
	now         func() time.Time
}

// NewHTMLReporter creates a reporter. templateDir may be empty; when set
// and containing report.html, that template replaces the built-in one.
func NewHTMLReporter(templateDir string, logger *zap.Logger) *HTMLReporter {
	return &HTMLReporter{templateDir: templateDir, logger: logger, now: time.Now}
}

// Render writes the report for ranked to path, creating parent directories
// as needed.
func (h *HTMLReporter) Render(ranked []work.RankedWork, path string) error {
	tmpl, err := h.loadTemplate()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	data := reportData{Works: ranked, GeneratedAt: h.now().UTC()}
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	h.logger.Info("wrote html report",
		zap.String("path", path),
		zap.Int("count", len(ranked)))
	return nil
}

func (h *HTMLReporter) loadTemplate() (*template.Template, error) {
	if h.templateDir != "" {
		external := filepath.Join(h.templateDir, "report.html")
		if _, err := os.Stat(external); err == nil {
			tmpl, err := template.New("report.html").Funcs(templateFuncs).ParseFiles(external)
			if err != nil {
				return nil, fmt.Errorf("parsing external template: %w", err)
			}
			return tmpl, nil
		}
	}

	tmpl, err := template.New("report").Funcs(templateFuncs).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in template: %w", err)
	}
	return tmpl, nil
}
