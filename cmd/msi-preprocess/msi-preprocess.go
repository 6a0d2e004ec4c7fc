package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/kit/version"
	"github.com/peterbourgon/ff/v3"
	"github.com/pkg/errors"

	"github.com/foxxcn/desklab/pkg/contexts/ctxlog"
	"github.com/foxxcn/desklab/pkg/preprocess"
)

func runPatch(args []string) error {
	flagset := flag.NewFlagSet("patch", flag.ExitOnError)
	var (
		flDistDir = flagset.String(
			"dist_dir",
			"../../desklab",
			"the dist directory to install",
		)
		flArp = flagset.Bool(
			"arp",
			false,
			"write ARPSYSTEMCOMPONENT registry values instead of plain ARP properties",
		)
		flCustomArp = flagset.String(
			"custom_arp",
			"{}",
			`custom arp properties, e.g. '{"Comments": {"msi": "ARPCOMMENTS", "v": "Remote control application."}}'`,
		)
		flCustom = flagset.Bool(
			"custom",
			false,
			"custom client build (forces component guid randomization)",
		)
		flAppName = flagset.String(
			"app_name",
			"DeskLab",
			"the app name",
		)
		flVersion = flagset.String(
			"version",
			"",
			"the app version (default: read from the version file)",
		)
		flManufacturer = flagset.String(
			"manufacturer",
			"PURSLANE",
			"the app manufacturer",
		)
		flLicense = flagset.String(
			"license",
			"",
			"the license rtf under the package root",
		)
		flPackageRoot = flagset.String(
			"package_root",
			"Package",
			"the root of the wix template tree",
		)
		flVersionFile = flagset.String(
			"version_file",
			"../../src/version.rs",
			"the source file carrying the VERSION and BUILD_DATE constants",
		)
		flDebug = flagset.Bool(
			"debug",
			false,
			"enable debug logging",
		)
	)

	flagset.Usage = usageFor(flagset, "msi-preprocess patch [flags]")
	if err := ff.Parse(flagset, args, ff.WithEnvVarPrefix("MSI_PREPROCESS")); err != nil {
		return err
	}

	logger := log.NewJSONLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)

	if *flDebug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	opts := &preprocess.Options{
		PackageRoot:     realPath(*flPackageRoot),
		DistDir:         realPath(*flDistDir),
		AppName:         *flAppName,
		Manufacturer:    *flManufacturer,
		Version:         *flVersion,
		VersionFile:     realPath(*flVersionFile),
		LicenseFile:     *flLicense,
		CustomARP:       *flCustomArp,
		SystemComponent: *flArp,
		CustomClient:    *flCustom,
	}

	ctx := ctxlog.NewContext(context.Background(), logger)
	if err := preprocess.Run(ctx, opts); err != nil {
		return errors.Wrap(err, "preprocessing wix sources")
	}

	level.Info(logger).Log(
		"msg", "wix sources patched",
		"package_root", opts.PackageRoot,
		"app_name", opts.AppName,
	)

	return nil
}

// realPath resolves p against the executable's directory, so the tool
// behaves the same regardless of the build system's working directory.
func realPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return p
	}
	return filepath.Join(filepath.Dir(exe), p)
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> --help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  patch        Patch the wix installer sources for an msi build\n")
	fmt.Fprintf(os.Stderr, "  version      Print full version information\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var run func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "version":
		run = func([]string) error {
			version.PrintFull()
			return nil
		}
	case "patch":
		run = runPatch
	default:
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
