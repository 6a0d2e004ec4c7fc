package wix

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// IndentUnit is the indentation step used throughout the desklab WiX
// sources.
const IndentUnit = "\t"

// Indent returns depth copies of IndentUnit.
func Indent(depth int) string {
	return strings.Repeat(IndentUnit, depth)
}

// A Region is a pair of marker comments bounding generated content inside a
// WiX source file, e.g. <!--$PreVarsStart$--> ... <!--$PreVarsEnd$-->.
// Markers are matched by substring, one marker per line.
type Region struct {
	Start string
	End   string
}

// PatchRegion rewrites path in place, inserting lines immediately after the
// region's start marker. Every inserted element must carry its own trailing
// newline. Either marker missing is an error, and the file is left
// untouched.
func PatchRegion(path string, region Region, lines []string) error {
	existing, start, err := readRegion(path, region)
	if err != nil {
		return err
	}

	patched := make([]string, 0, len(existing)+len(lines))
	patched = append(patched, existing[:start+1]...)
	patched = append(patched, lines...)
	patched = append(patched, existing[start+1:]...)

	return writeLines(path, patched)
}

func readRegion(path string, region Region) ([]string, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", path)
	}

	lines := splitLines(string(raw))
	start, end := -1, -1
	for i, line := range lines {
		if strings.Contains(line, region.Start) {
			start = i
		}
		if strings.Contains(line, region.End) {
			end = i
		}
	}

	if start == -1 {
		return nil, 0, errors.Errorf("start tag %q not found in %s", region.Start, path)
	}
	if end == -1 {
		return nil, 0, errors.Errorf("end tag %q not found in %s", region.End, path)
	}

	return lines, start, nil
}

// splitLines splits s into lines, each keeping its trailing newline, so a
// split-then-write round trip reproduces the file byte for byte.
func splitLines(s string) []string {
	var lines []string
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
