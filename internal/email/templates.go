package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type portalLinkEmailData struct {
	baseEmailData
	ClientName string
	Reference  string
	ExpiresAt  string
}

type stageChangedEmailData struct {
	baseEmailData
	ClientName string
	Reference  string
	NewStage   string
}

type paymentReceiptEmailData struct {
	baseEmailData
	ClientName      string
	Reference       string
	AmountFormatted string
}

func renderEmailTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
