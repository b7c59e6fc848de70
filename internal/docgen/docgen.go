// File path: internal/docgen/docgen.go
package docgen

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Document is a rendered email document.
type Document struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Generator fills fixed email templates with per-leader values. Templates
// are baked in; only their field values vary per request.
type Generator struct {
	templates map[string]emailTemplate
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Fixed document set. Each template references fields by name, e.g.
// {{.LeaderName}}; missing fields render empty rather than erroring.
var builtinTemplates = map[string]struct{ subject, body string }{
	"welcome": {
		subject: "Welcome, {{.LeaderName}}",
		body: "Hi {{.FirstName}},\n\n" +
			"Welcome to the coaching program. Your kickoff session is on {{.SessionDate}} at {{.SessionTime}}.\n" +
			"Meeting link: {{.MeetingLink}}\n\n" +
			"Before the session, please complete your assessment using login code {{.LoginCode}}.\n",
	},
	"reminder": {
		subject: "Reminder: session on {{.SessionDate}}",
		body: "Hi {{.FirstName}},\n\n" +
			"A quick reminder about your session on {{.SessionDate}} at {{.SessionTime}}.\n" +
			"Meeting link: {{.MeetingLink}}\n",
	},
	"debrief": {
		subject: "Your debrief session is booked",
		body: "Hi {{.FirstName}},\n\n" +
			"Your debrief session is booked for {{.SessionDate}} at {{.SessionTime}}.\n" +
			"We will walk through your results together. Meeting link: {{.MeetingLink}}\n",
	},
}

// New parses the builtin templates. Parsing failures are programmer errors
// and surface immediately.
func New() (*Generator, error) {
	gen := &Generator{templates: make(map[string]emailTemplate, len(builtinTemplates))}
	for name, tpl := range builtinTemplates {
		subject, err := template.New(name + ".subject").Parse(tpl.subject)
		if err != nil {
			return nil, fmt.Errorf("parse template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Parse(tpl.body)
		if err != nil {
			return nil, fmt.Errorf("parse template %s body: %w", name, err)
		}
		gen.templates[name] = emailTemplate{subject: subject, body: body}
	}
	return gen, nil
}

// Names lists the available templates, sorted.
func (g *Generator) Names() []string {
	names := make([]string, 0, len(g.templates))
	for name := range g.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields are the values substituted into a template.
type Fields struct {
	LeaderName  string `json:"leader_name"`
	FirstName   string `json:"first_name"`
	SessionDate string `json:"session_date"`
	SessionTime string `json:"session_time"`
	MeetingLink string `json:"meeting_link"`
	LoginCode   string `json:"login_code"`
}

// Generate renders one named template.
func (g *Generator) Generate(name string, fields Fields) (Document, error) {
	tpl, ok := g.templates[name]
	if !ok {
		return Document{}, fmt.Errorf("unknown template %q (have: %s)", name, strings.Join(g.Names(), ", "))
	}
	var subject, body strings.Builder
	if err := tpl.subject.Execute(&subject, fields); err != nil {
		return Document{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tpl.body.Execute(&body, fields); err != nil {
		return Document{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Document{Name: name, Subject: subject.String(), Body: body.String()}, nil
}
