package preprocess

import (
	"github.com/mixer/clock"
)

// Options carries everything the preprocessing passes need. It mirrors the
// flag surface of cmd/msi-preprocess; paths are expected to be resolved by
// the caller.
type Options struct {
	// PackageRoot is the root of the WiX template tree (Includes.wxi,
	// Package.wxs, Components/, Fragments/, Language/, Resources/).
	PackageRoot string

	// DistDir is the distribution directory whose files become
	// <Component> entries.
	DistDir string

	AppName      string
	Manufacturer string

	// Version overrides the version read from VersionFile. Dashes are
	// normalized to dots before parsing.
	Version string

	// VersionFile is the source file carrying the VERSION and BUILD_DATE
	// string constants.
	VersionFile string

	// LicenseFile names the license rtf under PackageRoot. Empty means
	// "<AppName> License.rtf".
	LicenseFile string

	// CustomARP is a JSON object merged over the default add/remove
	// programs property table.
	CustomARP string

	// SystemComponent selects the ARPSYSTEMCOMPONENT flavor: registry
	// values under the product key instead of plain ARP properties.
	SystemComponent bool

	// CustomClient marks a rebranded build and forces component GUID
	// randomization even when the app name is unchanged.
	CustomClient bool

	// Clock is the clock used for the build date fallback and the
	// InstallDate registry value. By default it is a normal realtime
	// clock, but a mock clock can be passed for testing purposes.
	Clock clock.Clock
}
