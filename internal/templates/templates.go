package templates

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/juju/errors"
)

//go:embed *.html
var files embed.FS

var parsed = template.Must(template.ParseFS(files, "*.html"))

// Render executes the named template (file name without directory).
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := parsed.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Annotatef(err, "render %s", name)
	}
	return buf.String(), nil
}
