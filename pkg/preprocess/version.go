package preprocess

import (
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// The desklab core records its version and build stamp as string constants,
// e.g.
//
//	pub const VERSION: &str = "1.2.4";
//	pub const BUILD_DATE: &str = "2024-04-08 23:11";
//
// These regexes match those literal formats and nothing fancier.
var (
	versionConst   = regexp.MustCompile(`VERSION: &str = "(.*)";`)
	buildDateConst = regexp.MustCompile(`BUILD_DATE: &str = "(.*)";`)
)

const buildDateFormat = "2006-01-02 15:04"

// buildInfo is the resolved version and build date feeding the template
// passes.
type buildInfo struct {
	version   string
	semver    *semver.Version
	buildDate string
}

// readBuildInfo resolves the product version and build date. An explicit
// version in opts wins over the constants file; the build date falls back
// to the current time when the constants file doesn't carry one. A missing
// constants file is always an error, even with an explicit version, since
// it means the tool is pointed at the wrong checkout.
func readBuildInfo(opts *Options) (*buildInfo, error) {
	raw, err := os.ReadFile(opts.VersionFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading version file %s", opts.VersionFile)
	}

	version := strings.ReplaceAll(opts.Version, "-", ".")
	if version == "" {
		if m := versionConst.FindSubmatch(raw); m != nil {
			version = string(m[1])
		}
	}
	if version == "" {
		return nil, errors.Errorf("version not found in %s", opts.VersionFile)
	}

	parsed, err := semver.NewVersion(version)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing version %q", version)
	}

	buildDate := opts.Clock.Now().Format(buildDateFormat)
	if m := buildDateConst.FindSubmatch(raw); m != nil {
		buildDate = string(m[1])
	}

	return &buildInfo{
		version:   version,
		semver:    parsed,
		buildDate: buildDate,
	}, nil
}
