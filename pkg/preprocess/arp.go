package preprocess

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// arpProperty is one add/remove programs table entry. Msi names the MSI
// property to emit in plain-property mode; Value feeds both modes. Type is
// the registry value type and defaults to string.
type arpProperty struct {
	Msi   string `json:"msi,omitempty"`
	Type  string `json:"t,omitempty"`
	Value string `json:"v,omitempty"`
}

// Branded builds should replace these links via -custom_arp.
// https://learn.microsoft.com/en-us/windows/win32/msi/property-reference
func defaultARPProperties() map[string]arpProperty {
	return map[string]arpProperty{
		"Comments": {Msi: "ARPCOMMENTS", Type: "string", Value: "!(loc.AR_Comment)"},
		"Contact":  {Msi: "ARPCONTACT", Value: "https://github.com/foxxcn/desklab"},
		"HelpLink": {Msi: "ARPHELPLINK", Value: "https://github.com/foxxcn/desklab/issues/"},
		"ReadMe":   {Msi: "ARPREADME", Value: "https://github.com/foxxcn/desklab"},
	}
}

// mergeCustomARP overlays the operator-supplied JSON table onto base.
// Entries replace wholesale, they don't deep-merge.
func mergeCustomARP(base map[string]arpProperty, customJSON string) (map[string]arpProperty, error) {
	custom := map[string]arpProperty{}
	if err := json.Unmarshal([]byte(customJSON), &custom); err != nil {
		return nil, errors.Wrap(err, "decoding custom arp")
	}

	for name, prop := range custom {
		base[name] = prop
	}
	return base, nil
}

// sortedNames keeps the emitted rows deterministic across runs.
func sortedNames(table map[string]arpProperty) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
