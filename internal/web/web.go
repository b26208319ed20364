// Package web holds the HTML views shown at the end of a failed login.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ErrorPage is the data for the authentication error view.
type ErrorPage struct {
	Provider  string
	Code      string
	ErrorName string
	LoginURL  string
}

// CancelledPage is the data for the login cancelled view.
type CancelledPage struct {
	LoginURL string
}

// Templates parses the embedded views. Each view is named after its file.
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}
