package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template IDs registered by NewTemplateEngine.
const (
	TemplateEventAssigned    = "event-assigned"
	TemplateEventAssignedSMS = "event-assigned-sms"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders. Keys absent from the data are
// left as-is.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateEventAssigned,
		Subject: "New event assigned: {{event_name}}",
		Body: "Hello {{assignee_name}},\n\n" +
			"You have been assigned the event \"{{event_name}}\" in {{department_name}}.\n" +
			"Schedule: {{schedule}}\n\n" +
			"Event reference: {{event_id}}",
	})
	e.RegisterTemplate(Template{
		ID:   TemplateEventAssignedSMS,
		Body: "ClinicOps: you were assigned \"{{event_name}}\" ({{schedule}}). Ref {{event_id}}",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
