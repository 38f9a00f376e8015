// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import (
	"bytes"
	"embed"
	"html/template"
	texttemplate "text/template"

	"github.com/samber/oops"
)

//go:embed templates/*.html templates/*.txt
var templatesFS embed.FS

// Template names. They double as the metric label for a delivery.
const (
	TemplateOTP        = "otp"
	TemplateFamilyCode = "family_code"
	TemplateReminder   = "reminder"
)

type renderer struct {
	html map[string]*template.Template
	text map[string]*texttemplate.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{
		html: make(map[string]*template.Template),
		text: make(map[string]*texttemplate.Template),
	}
	for _, name := range []string{TemplateOTP, TemplateFamilyCode, TemplateReminder} {
		h, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("MAIL_TEMPLATE_INVALID").With("template", name).Wrap(err)
		}
		t, err := texttemplate.ParseFS(templatesFS, "templates/"+name+".txt")
		if err != nil {
			return nil, oops.Code("MAIL_TEMPLATE_INVALID").With("template", name).Wrap(err)
		}
		r.html[name] = h
		r.text[name] = t
	}
	return r, nil
}

// render executes both bodies of a template.
func (r *renderer) render(name string, data any) (htmlBody, textBody string, err error) {
	var hb, tb bytes.Buffer
	if err := r.html[name].ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}
	if err := r.text[name].Execute(&tb, data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}
	return hb.String(), tb.String(), nil
}
