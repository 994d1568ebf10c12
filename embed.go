// Package benchdash provides embedded runtime resources.
package benchdash

import (
	"embed"
	"io/fs"
)

//go:embed templates/config.yaml
var rawTemplates embed.FS

// Templates is the embedded templates filesystem with the "templates/" prefix stripped.
var Templates = mustSub(rawTemplates, "templates")

// ConfigTemplateName is the commented default configuration inside Templates.
const ConfigTemplateName = "config.yaml"

// ConfigTemplate returns the commented default configuration file.
func ConfigTemplate() []byte {
	data, err := fs.ReadFile(Templates, ConfigTemplateName)
	if err != nil {
		panic(err)
	}
	return data
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
