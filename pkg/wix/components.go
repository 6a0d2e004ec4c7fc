package wix

import (
	"bytes"
	"text/template"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// A FileComponent is one file harvested from the dist directory, destined
// to become an auto-generated <Component> entry.
type FileComponent struct {
	Source       string // path to the file on disk, forward slashes
	Subdirectory string // install subdirectory, empty for the dist root
}

// Component and File elements don't get explicit Ids here. Generated ids
// like Component_1 collide across fragments and fail the build with
// "WIX0130 The primary key 'xxxx' is duplicated in table 'Directory'".
var componentTemplate = template.Must(template.New("component").Parse(
	"{{.Indent}}<Component Guid=\"{{.Guid}}\" {{if .Subdirectory}}Subdirectory=\"{{.Subdirectory}}\"{{end}}>\n" +
		"{{.Indent}}\t<File Source=\"{{.Source}}\" KeyPath=\"yes\" Checksum=\"yes\" />\n" +
		"{{.Indent}}</Component>\n"))

// RenderFileComponents renders the <Component> block for the harvested
// files at the given indent depth, one fresh GUID per component.
func RenderFileComponents(files []FileComponent, depth int) ([]string, error) {
	lines := make([]string, 0, 3*len(files))
	for _, fc := range files {
		var buf bytes.Buffer
		err := componentTemplate.Execute(&buf, struct {
			FileComponent
			Indent string
			Guid   string
		}{fc, Indent(depth), uuid.New().String()})
		if err != nil {
			return nil, errors.Wrapf(err, "rendering component for %s", fc.Source)
		}
		lines = append(lines, splitLines(buf.String())...)
	}
	return lines, nil
}
