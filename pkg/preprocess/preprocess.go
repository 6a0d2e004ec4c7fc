// Package preprocess patches the desklab WiX installer sources before
// candle and light compile the MSI. Each pass locates a marker-comment pair
// in one template file and splices generated content in between: version
// and manufacturer defines, the upgrade block, add/remove programs
// metadata, one <Component> per dist file, UI variables, and app name
// replacement in the language files.
package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/mixer/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/foxxcn/desklab/pkg/contexts/ctxlog"
	"github.com/foxxcn/desklab/pkg/wix"
)

// defaultAppName is the product name baked into the shipped WiX sources.
// Anything else means a rebranded client.
const defaultAppName = "DeskLab"

// Run executes every preprocessing pass over the WiX template tree, in the
// order the installer build expects. The first failing pass aborts the run.
// Each pass reads a whole file, patches in memory, and writes it back, so
// an aborted run leaves no half-written file.
func Run(ctx context.Context, opts *Options) error {
	ctx, span := trace.StartSpan(ctx, "preprocess.Run")
	defer span.End()

	logger := ctxlog.FromContext(ctx)

	if opts.Clock == nil {
		opts.Clock = clock.DefaultClock{}
	}
	if opts.CustomARP == "" {
		opts.CustomARP = "{}"
	}

	info, err := readBuildInfo(opts)
	if err != nil {
		return err
	}

	arpTable, err := mergeCustomARP(defaultARPProperties(), opts.CustomARP)
	if err != nil {
		return err
	}

	passes := []struct {
		name string
		fn   func() error
	}{
		{"pre_vars", func() error { return genPreVars(opts, info) }},
		{"component_guids", func() error { return randomizeGUIDs(opts) }},
		{"upgrade_info", func() error { return genUpgradeInfo(opts, info) }},
		{"arp_metadata", func() error { return genARP(opts, info, arpTable) }},
		{"file_components", func() error { return genFileComponents(opts) }},
		{"ui_vars", func() error { return genUIVars(opts) }},
		{"language_files", func() error { return renameInLanguageFiles(opts) }},
	}

	for _, pass := range passes {
		if err := pass.fn(); err != nil {
			return errors.Wrapf(err, "running %s pass", pass.name)
		}
		level.Debug(logger).Log(
			"msg", "pass complete",
			"pass", pass.name,
		)
	}

	return nil
}

// genPreVars fills Includes.wxi with the <?define?> rows every other
// template references. The UpgradeCode is a name-based UUID over the app
// executable, so it stays stable across releases of the same product.
func genPreVars(opts *Options, info *buildInfo) error {
	upgradeCode := uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.AppName+".exe"))

	indent := wix.Indent(1)
	lines := []string{
		fmt.Sprintf("%s<?define Version=\"%s\" ?>\n", indent, info.version),
		fmt.Sprintf("%s<?define Manufacturer=\"%s\" ?>\n", indent, opts.Manufacturer),
		fmt.Sprintf("%s<?define Product=\"%s\" ?>\n", indent, opts.AppName),
		fmt.Sprintf("%s<?define Description=\"%s Installer\" ?>\n", indent, opts.AppName),
		fmt.Sprintf("%s<?define ProductLower=\"%s\" ?>\n", indent, strings.ToLower(opts.AppName)),
		fmt.Sprintf("%s<?define RegKeyRoot=\".$(var.ProductLower)\" ?>\n", indent),
		fmt.Sprintf("%s<?define RegKeyInstall=\"$(var.RegKeyRoot)\\Install\" ?>\n", indent),
		fmt.Sprintf("%s<?define BuildDir=\"%s\" ?>\n", indent, opts.DistDir),
		fmt.Sprintf("%s<?define BuildDate=\"%s\" ?>\n", indent, info.buildDate),
		"\n",
		fmt.Sprintf("%s<!-- The UpgradeCode must be consistent for each product. ! -->\n", indent),
		fmt.Sprintf("%s<?define UpgradeCode = \"%s\" ?>\n", indent, upgradeCode),
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Includes.wxi"),
		wix.Region{Start: "<!--$PreVarsStart$-->", End: "<!--$PreVarsEnd$-->"},
		lines,
	)
}

func randomizeGUIDs(opts *Options) error {
	if !opts.CustomClient && opts.AppName == defaultAppName {
		return nil
	}
	return wix.RandomizeComponentGUIDs(opts.PackageRoot)
}

func genUpgradeInfo(opts *Options, info *buildInfo) error {
	indent := wix.Indent(3)
	major := info.semver.Major()

	lines := []string{
		fmt.Sprintf("%s<Upgrade Id=\"%s\">\n", indent, uuid.New()),
		fmt.Sprintf("%s%s<UpgradeVersion Property=\"OLD_VERSION_FOUND\" Minimum=\"%d.0.0\" Maximum=\"%d.99.99\" IncludeMinimum=\"yes\" IncludeMaximum=\"yes\" OnlyDetect=\"no\" IgnoreRemoveFailure=\"yes\" MigrateFeatures=\"yes\" />\n",
			indent, wix.IndentUnit, major, major),
		fmt.Sprintf("%s</Upgrade>\n", indent),
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Fragments", "Upgrades.wxs"),
		wix.Region{Start: "<!--$UpgradeStart$-->", End: "<!--$UpgradeEnd$-->"},
		lines,
	)
}

func genARP(opts *Options, info *buildInfo, table map[string]arpProperty) error {
	if opts.SystemComponent {
		return genARPRegistryValues(opts, info, table)
	}
	return genARPProperties(opts, table)
}

// genARPProperties writes plain ARP <Property> rows for a standard install
// that shows up in add/remove programs.
func genARPProperties(opts *Options, table map[string]arpProperty) error {
	indent := wix.Indent(2)
	lines := []string{
		fmt.Sprintf("%s<!--https://learn.microsoft.com/en-us/windows/win32/msi/arpsystemcomponent?redirectedfrom=MSDN-->\n", indent),
		fmt.Sprintf("%s<!--<Property Id=\"ARPSYSTEMCOMPONENT\" Value=\"1\" />-->\n\n", indent),
		fmt.Sprintf("%s<!--https://learn.microsoft.com/en-us/windows/win32/msi/property-reference-->\n", indent),
	}

	for _, name := range sortedNames(table) {
		prop := table[name]
		if prop.Msi == "" || prop.Value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s<Property Id=\"%s\" Value=\"%s\" />\n", indent, prop.Msi, prop.Value))
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Fragments", "AddRemoveProperties.wxs"),
		wix.Region{Start: "<!--$ArpStart$-->", End: "<!--$ArpEnd$-->"},
		lines,
	)
}

// genARPRegistryValues writes the uninstall registry values for an
// ARPSYSTEMCOMPONENT install, where the product maintains its own
// add/remove programs entry under its registry key.
func genARPRegistryValues(opts *Options, info *buildInfo, table map[string]arpProperty) error {
	estimatedSize, err := dirSize(opts.DistDir)
	if err != nil {
		return errors.Wrapf(err, "sizing dist dir %s", opts.DistDir)
	}

	indent := wix.Indent(5)
	row := func(typ, name, value string) string {
		return fmt.Sprintf("%s<RegistryValue Type=\"%s\" Name=\"%s\" Value=\"%s\" />\n", indent, typ, name, value)
	}

	lines := []string{
		fmt.Sprintf("%s<!--https://learn.microsoft.com/en-us/windows/win32/msi/property-reference-->\n", indent),
		row("string", "DisplayName", opts.AppName),
		row("string", "DisplayIcon", "[INSTALLFOLDER]"+opts.AppName+".exe"),
		row("string", "DisplayVersion", info.version),
		row("string", "Publisher", opts.Manufacturer),
		row("string", "InstallDate", opts.Clock.Now().Format("20060102")),
		row("string", "InstallLocation", "[INSTALLFOLDER]"),
		row("string", "InstallSource", "[InstallSource]"),
		row("integer", "Language", "[ProductLanguage]"),
		row("integer", "EstimatedSize", strconv.FormatInt(estimatedSize, 10)),
		row("expandable", "ModifyPath", "MsiExec.exe /X [ProductCode]"),
		fmt.Sprintf("%s<RegistryValue Type=\"integer\" Id=\"NoModify\" Value=\"1\" />\n", indent),
		row("expandable", "UninstallString", "MsiExec.exe /X [ProductCode]"),
		row("string", "Version", info.version),
		row("integer", "VersionMajor", strconv.FormatInt(info.semver.Major(), 10)),
		row("integer", "VersionMinor", strconv.FormatInt(info.semver.Minor(), 10)),
		row("integer", "VersionBuild", strconv.FormatInt(info.semver.Patch(), 10)),
		row("integer", "WindowsInstaller", "1"),
	}

	for _, name := range sortedNames(table) {
		prop := table[name]
		if prop.Value == "" {
			continue
		}
		typ := prop.Type
		if typ == "" {
			typ = "string"
		}
		lines = append(lines, row(typ, name, prop.Value))
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Components", "Regs.wxs"),
		wix.Region{Start: "<!--$ArpStart$-->", End: "<!--$ArpEnd$-->"},
		lines,
	)
}

// genFileComponents harvests the dist directory into <Component> entries.
// The app executable is skipped, it has its own hand-written component.
func genFileComponents(opts *Options) error {
	exeName := strings.ToLower(opts.AppName + ".exe")

	var files []wix.FileComponent
	err := filepath.Walk(opts.DistDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if strings.ToLower(info.Name()) == exeName {
			return nil
		}

		rel, err := filepath.Rel(opts.DistDir, path)
		if err != nil {
			return err
		}
		subdir := filepath.Dir(rel)
		if subdir == "." {
			subdir = ""
		}

		files = append(files, wix.FileComponent{
			Source:       filepath.ToSlash(path),
			Subdirectory: filepath.ToSlash(subdir),
		})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking dist dir %s", opts.DistDir)
	}

	rendered, err := wix.RenderFileComponents(files, 3)
	if err != nil {
		return err
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Components", defaultAppName+".wxs"),
		wix.Region{Start: "<!--$AutoComonentStart$-->", End: "<!--$AutoComponentEnd$-->"},
		rendered,
	)
}

// genUIVars points the WixUI dialog set at whatever branding assets are
// actually present under the package root.
func genUIVars(opts *Options) error {
	indent := wix.Indent(2)

	var lines []string

	license := opts.LicenseFile
	if license == "" {
		license = opts.AppName + " License.rtf"
	}
	if fileExists(filepath.Join(opts.PackageRoot, license)) {
		lines = append(lines, fmt.Sprintf("%s<WixVariable Id=\"WixUILicenseRtf\" Value=\"%s\" />\n", indent, license))
	}

	lines = append(lines,
		"\n",
		fmt.Sprintf("%s<!--https://wixtoolset.org/docs/tools/wixext/wixui/#customizing-a-dialog-set-->\n", indent),
	)

	for _, v := range []string{
		"WixUIBannerBmp",
		"WixUIDialogBmp",
		"WixUIExclamationIco",
		"WixUIInfoIco",
		"WixUINewIco",
		"WixUIUpIco",
	} {
		if fileExists(filepath.Join(opts.PackageRoot, "Resources", v+".bmp")) {
			lines = append(lines, fmt.Sprintf("%s<WixVariable Id=\"%s\" Value=\"Resources\\%s.bmp\" />\n", indent, v, v))
		}
	}

	return wix.PatchRegion(
		filepath.Join(opts.PackageRoot, "Package.wxs"),
		wix.Region{Start: "<!--$UIVarsStart$-->", End: "<!--$UIVarsEnd$-->"},
		lines,
	)
}

// renameInLanguageFiles rebrands the localized strings for custom clients.
// It's a no-op for stock builds since the files already say DeskLab.
func renameInLanguageFiles(opts *Options) error {
	matches, err := filepath.Glob(filepath.Join(opts.PackageRoot, "Language", "*.wxl"))
	if err != nil {
		return errors.Wrap(err, "globbing language files")
	}

	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		replaced := strings.ReplaceAll(string(raw), defaultAppName, opts.AppName)
		if err := os.WriteFile(path, []byte(replaced), 0644); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return nil
}

// dirSize totals the regular files under root, in bytes. It feeds the
// EstimatedSize registry value.
func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
