package notify

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"
)

const DefaultTemplate = `[{{.Title}}]
Room: {{.Room}} (#{{.RoomID}})
Detail: {{.Body}}
{{- if .GasLevel }}
Gas Level: {{.GasLevel}} PPM
{{- end }}
Raised At: {{.RaisedAt}}`

// TemplateData provides fields for rendering ops channel content.
type TemplateData struct {
	Title    string
	Body     string
	Room     string
	RoomID   int64
	Kind     string
	GasLevel string
	RaisedAt string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("room-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateDataFor(msg Message) TemplateData {
	data := TemplateData{
		Title:  msg.Title,
		Body:   msg.Body,
		Room:   msg.RoomName,
		RoomID: msg.RoomID,
		Kind:   msg.Kind,
	}
	if msg.GasLevel != 0 {
		data.GasLevel = fmt.Sprintf("%.2f", msg.GasLevel)
	}
	if !msg.RaisedAt.IsZero() {
		data.RaisedAt = msg.RaisedAt.UTC().Format(time.RFC3339)
	}
	return data
}
