// Package web holds the upload page and its script.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templates embed.FS

//go:embed static/*
var static embed.FS

// PageData feeds templates/index.html.
type PageData struct {
	Layout      string
	MaxUploadMB int64
	Env         string
}

// Templates parses every page template.
func Templates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}

// Static is the asset tree served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
