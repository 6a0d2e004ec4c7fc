package wix

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	componentGuidLine = regexp.MustCompile(`Component.+Guid="([^"]+)"`)
	guidAttr          = regexp.MustCompile(`Guid="[^"]+"`)
)

// RandomizeComponentGUIDs rewrites every .wxs file under root, replacing
// the Guid attribute of each Component element with a fresh random UUID.
// Rebranded clients must not share installer component GUIDs with the stock
// product, or the two fight over the same components at install time.
func RandomizeComponentGUIDs(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".wxs" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}

		lines := splitLines(string(raw))
		for i, line := range lines {
			if componentGuidLine.MatchString(line) {
				lines[i] = guidAttr.ReplaceAllString(line, `Guid="`+uuid.New().String()+`"`)
			}
		}

		return writeLines(path, lines)
	})
}
