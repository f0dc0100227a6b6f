package export

import (
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"conarrator/api/internal/markdown"
	"conarrator/api/internal/model"
)

// Service renders session transcripts. AI messages are treated as
// markdown; everything else is plain text.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

// Export renders the project state in the requested format.
func (s *Service) Export(state model.ProjectState, req Request) (*Result, error) {
	title := req.Title
	if title == "" {
		title = "Co-Narrator Session Transcript"
	}

	data := TemplateData{
		Title:      title,
		ExportedAt: s.now(),
		Messages:   make([]TemplateMessage, 0, len(state.Messages)),
	}

	for _, msg := range state.Messages {
		data.Messages = append(data.Messages, TemplateMessage{
			Role:     string(msg.Role),
			Speaker:  speakerLabel(msg),
			BodyHTML: renderBody(msg),
		})
	}

	if req.IncludeDocuments {
		data.Documents = make([]TemplateDocument, 0, len(state.Documents))
		for _, doc := range state.Documents {
			data.Documents = append(data.Documents, TemplateDocument{
				Title:    doc.Title,
				BodyHTML: plainToHTML(doc.Content),
			})
		}
	}

	rendered, err := RenderTranscriptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(rendered),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(rendered, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func speakerLabel(msg model.Message) string {
	switch msg.Role {
	case model.MessageHost:
		return "Lead Writer"
	case model.MessageAI:
		return "AI Co-Narrator"
	case model.MessageViewer:
		if msg.Author != "" {
			return msg.Author
		}
		return "Viewer"
	default:
		return string(msg.Role)
	}
}

func renderBody(msg model.Message) template.HTML {
	if msg.Role == model.MessageAI {
		return template.HTML(markdown.ToHTML(msg.Text))
	}
	return plainToHTML(msg.Text)
}

func plainToHTML(text string) template.HTML {
	escaped := html.EscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
