package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const fixedComponentGUID = "6DBF2690-0955-4C6A-940F-634DDA503F49"

// setupPackageRoot lays down a minimal copy of the shipped WiX template
// tree, markers and all.
func setupPackageRoot(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "Package")

	files := map[string]string{
		"Includes.wxi": `<Include>
	<!--$PreVarsStart$-->
	<!--$PreVarsEnd$-->
</Include>
`,
		"Package.wxs": `<Package>
	<!--$UIVarsStart$-->
	<!--$UIVarsEnd$-->
</Package>
`,
		"Fragments/Upgrades.wxs": `<Fragment>
	<!--$UpgradeStart$-->
	<!--$UpgradeEnd$-->
</Fragment>
`,
		"Fragments/AddRemoveProperties.wxs": `<Fragment>
	<!--$ArpStart$-->
	<!--$ArpEnd$-->
</Fragment>
`,
		"Components/Regs.wxs": `<Fragment>
	<Component Id="Product.Registry.DefaultIcon" Guid="` + fixedComponentGUID + `">
	</Component>
	<!--$ArpStart$-->
	<!--$ArpEnd$-->
</Fragment>
`,
		"Components/DeskLab.wxs": `<Fragment>
	<!--$AutoComonentStart$-->
	<!--$AutoComponentEnd$-->
</Fragment>
`,
		"Language/en-us.wxl":  `<String Id="AR_Comment">DeskLab remote desktop</String>` + "\n",
		"DeskLab License.rtf": "license text\n",
	}

	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "Resources"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Resources", "WixUIBannerBmp.bmp"), []byte("bmp"), 0644))

	return root
}

// setupDistDir builds a fake distribution: the app exe (excluded from
// harvesting), a root-level file, and a nested file.
func setupDistDir(t *testing.T) string {
	t.Helper()

	dist := filepath.Join(t.TempDir(), "desklab")
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "lib"), 0755))

	require.NoError(t, os.WriteFile(filepath.Join(dist, "DeskLab.exe"), []byte("MZ exe bytes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "readme.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "lib", "helper.dll"), []byte("dll bytes"), 0644))

	return dist
}

func testOptions(t *testing.T) *Options {
	t.Helper()

	return &Options{
		PackageRoot:  setupPackageRoot(t),
		DistDir:      setupDistDir(t),
		AppName:      "DeskLab",
		Manufacturer: "PURSLANE",
		VersionFile:  writeVersionFile(t, versionFileFixture),
	}
}

func readFixture(t *testing.T, root string, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	return string(raw)
}

func TestRun(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	require.NoError(t, Run(context.Background(), opts))

	includes := readFixture(t, opts.PackageRoot, "Includes.wxi")
	require.Contains(t, includes, `<?define Version="1.2.4" ?>`)
	require.Contains(t, includes, `<?define Manufacturer="PURSLANE" ?>`)
	require.Contains(t, includes, `<?define Product="DeskLab" ?>`)
	require.Contains(t, includes, `<?define ProductLower="desklab" ?>`)
	require.Contains(t, includes, `<?define BuildDate="2024-04-08 23:11" ?>`)
	require.Contains(t, includes, fmt.Sprintf(`<?define UpgradeCode = "%s" ?>`,
		uuid.NewSHA1(uuid.NameSpaceOID, []byte("DeskLab.exe"))))

	upgrades := readFixture(t, opts.PackageRoot, "Fragments/Upgrades.wxs")
	require.Contains(t, upgrades, `Minimum="1.0.0" Maximum="1.99.99"`)
	require.Contains(t, upgrades, `Property="OLD_VERSION_FOUND"`)

	arp := readFixture(t, opts.PackageRoot, "Fragments/AddRemoveProperties.wxs")
	require.Contains(t, arp, `<Property Id="ARPCONTACT" Value="https://github.com/foxxcn/desklab" />`)
	require.Contains(t, arp, `<Property Id="ARPCOMMENTS" Value="!(loc.AR_Comment)" />`)

	components := readFixture(t, opts.PackageRoot, "Components/DeskLab.wxs")
	require.Contains(t, components, `readme.txt" KeyPath="yes" Checksum="yes"`)
	require.Contains(t, components, `Subdirectory="lib"`)
	require.Contains(t, components, `helper.dll`)
	require.NotContains(t, components, "DeskLab.exe", "the app exe has its own hand-written component")

	pkg := readFixture(t, opts.PackageRoot, "Package.wxs")
	require.Contains(t, pkg, `<WixVariable Id="WixUILicenseRtf" Value="DeskLab License.rtf" />`)
	require.Contains(t, pkg, `<WixVariable Id="WixUIBannerBmp" Value="Resources\WixUIBannerBmp.bmp" />`)
	require.NotContains(t, pkg, "WixUIDialogBmp", "absent bitmaps get no variable")

	// Stock build: component guids and language files stay put.
	regs := readFixture(t, opts.PackageRoot, "Components/Regs.wxs")
	require.Contains(t, regs, fixedComponentGUID)
	require.Contains(t, readFixture(t, opts.PackageRoot, "Language/en-us.wxl"), "DeskLab remote desktop")
}

func TestRunSystemComponent(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.SystemComponent = true
	require.NoError(t, Run(context.Background(), opts))

	regs := readFixture(t, opts.PackageRoot, "Components/Regs.wxs")
	require.Contains(t, regs, `<RegistryValue Type="string" Name="DisplayName" Value="DeskLab" />`)
	require.Contains(t, regs, `<RegistryValue Type="string" Name="DisplayIcon" Value="[INSTALLFOLDER]DeskLab.exe" />`)
	require.Contains(t, regs, `<RegistryValue Type="string" Name="DisplayVersion" Value="1.2.4" />`)
	require.Contains(t, regs, `<RegistryValue Type="integer" Name="VersionMajor" Value="1" />`)
	require.Contains(t, regs, `<RegistryValue Type="integer" Name="VersionMinor" Value="2" />`)
	require.Contains(t, regs, `<RegistryValue Type="integer" Name="VersionBuild" Value="4" />`)
	require.Regexp(t, `Name="InstallDate" Value="\d{8}"`, regs)
	require.Contains(t, regs, `<RegistryValue Type="expandable" Name="UninstallString" Value="MsiExec.exe /X [ProductCode]" />`)

	// EstimatedSize is the byte total of the dist dir: the exe counts
	// even though it isn't harvested as a component.
	wantSize := len("MZ exe bytes") + len("hello") + len("dll bytes")
	require.Contains(t, regs, fmt.Sprintf(`Name="EstimatedSize" Value="%d"`, wantSize))

	// Custom table entries with values land as string registry rows.
	require.Contains(t, regs, `<RegistryValue Type="string" Name="Contact" Value="https://github.com/foxxcn/desklab" />`)

	// The plain-property file is left for the other flavor.
	arp := readFixture(t, opts.PackageRoot, "Fragments/AddRemoveProperties.wxs")
	require.NotContains(t, arp, "ARPCONTACT")
}

func TestRunCustomARP(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.CustomARP = `{"Comments": {"msi": "ARPCOMMENTS", "v": "Remote control application."}}`
	require.NoError(t, Run(context.Background(), opts))

	arp := readFixture(t, opts.PackageRoot, "Fragments/AddRemoveProperties.wxs")
	require.Contains(t, arp, `<Property Id="ARPCOMMENTS" Value="Remote control application." />`)
	require.NotContains(t, arp, "!(loc.AR_Comment)")
}

func TestRunCustomARPMalformed(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.CustomARP = `{"Comments": `

	err := Run(context.Background(), opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decoding custom arp")
}

func TestRunRebrandedClient(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.AppName = "Acme"
	require.NoError(t, Run(context.Background(), opts))

	includes := readFixture(t, opts.PackageRoot, "Includes.wxi")
	require.Contains(t, includes, `<?define Product="Acme" ?>`)
	require.Contains(t, includes, `<?define Description="Acme Installer" ?>`)
	require.Contains(t, includes, fmt.Sprintf(`<?define UpgradeCode = "%s" ?>`,
		uuid.NewSHA1(uuid.NameSpaceOID, []byte("Acme.exe"))))

	// Rebranding re-rolls the hand-written component guids.
	regs := readFixture(t, opts.PackageRoot, "Components/Regs.wxs")
	require.NotContains(t, regs, fixedComponentGUID)

	// And rewrites the localized strings.
	lang := readFixture(t, opts.PackageRoot, "Language/en-us.wxl")
	require.Contains(t, lang, "Acme remote desktop")
	require.NotContains(t, lang, "DeskLab")
}

func TestRunCustomFlagForcesGUIDRandomization(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.CustomClient = true
	require.NoError(t, Run(context.Background(), opts))

	regs := readFixture(t, opts.PackageRoot, "Components/Regs.wxs")
	require.NotContains(t, regs, fixedComponentGUID)
}

func TestRunMissingMarker(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(opts.PackageRoot, "Includes.wxi"),
		[]byte("<Include>\n\t<!--$PreVarsStart$-->\n</Include>\n"),
		0644,
	))

	err := Run(context.Background(), opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), `end tag "<!--$PreVarsEnd$-->" not found`)
	require.Contains(t, err.Error(), "pre_vars pass")
}

func TestRunMissingDistDir(t *testing.T) {
	t.Parallel()

	opts := testOptions(t)
	opts.DistDir = filepath.Join(t.TempDir(), "nope")

	err := Run(context.Background(), opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "walking dist dir")
}

// TestRunRegeneration checks that two runs over identical fixtures produce
// structurally identical output, with only the randomized guids differing.
func TestRunRegeneration(t *testing.T) {
	t.Parallel()

	dist := setupDistDir(t)
	versionFile := writeVersionFile(t, versionFileFixture)

	patch := func() string {
		opts := &Options{
			PackageRoot:  setupPackageRoot(t),
			DistDir:      dist,
			AppName:      "DeskLab",
			Manufacturer: "PURSLANE",
			VersionFile:  versionFile,
		}
		require.NoError(t, Run(context.Background(), opts))

		var combined string
		for _, name := range []string{
			"Includes.wxi",
			"Package.wxs",
			"Fragments/Upgrades.wxs",
			"Fragments/AddRemoveProperties.wxs",
			"Components/Regs.wxs",
			"Components/DeskLab.wxs",
		} {
			combined += readFixture(t, opts.PackageRoot, name)
		}
		return combined
	}

	normalizeGuids := regexp.MustCompile(`Guid="[^"]+"|<Upgrade Id="[^"]+">`)

	first := normalizeGuids.ReplaceAllString(patch(), "")
	second := normalizeGuids.ReplaceAllString(patch(), "")
	require.Equal(t, first, second)
}
