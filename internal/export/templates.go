package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/transcript.html")
	if err != nil {
		// Fallback to built-in template if file not found
		transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	transcriptTemplate = template.Must(template.New("transcript").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for transcript template rendering
type TemplateData struct {
	Title      string
	ExportedAt time.Time
	Messages   []TemplateMessage
	Documents  []TemplateDocument
}

// TemplateMessage holds one chat message for the template
type TemplateMessage struct {
	Role     string
	Speaker  string
	BodyHTML template.HTML
}

// TemplateDocument holds one reference document for the template
type TemplateDocument struct {
	Title    string
	BodyHTML template.HTML
}

// RenderTranscriptHTML renders the transcript template with provided data
func RenderTranscriptHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .message { margin: 1rem 0; padding: 0.5rem 1rem; border-left: 3px solid #ccc; }
    .document { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Messages}}<div class="message"><strong>{{.Speaker}}</strong><div>{{.BodyHTML | safeHTML}}</div></div>{{end}}
  {{if .Documents}}
  <h2>Reference Documents</h2>
  {{range .Documents}}<div class="document"><h3>{{.Title}}</h3><div>{{.BodyHTML | safeHTML}}</div></div>{{end}}
  {{end}}
</body>
</html>`
