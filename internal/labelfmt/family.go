package labelfmt

import "strings"

// rawFamilyMap collapses the raw product names upstream sends into
// canonical family identifiers. Several raw names map to one family.
var rawFamilyMap = map[string]string{
	"o grande investidor":     "OGI_V1",
	"grande investidor":       "OGI_V1",
	"ogi":                     "OGI_V1",
	"o grande investidor 2.0": "OGI_V2",
	"ogi 2.0":                 "OGI_V2",
	"wealth club":             "WEALTH_CLUB",
	"clube wealth":            "WEALTH_CLUB",
	"mentorship":              "MENTORSHIP",
	"mentoria":                "MENTORSHIP",
}

// FamilyFor normalizes a raw product name into its product family.
// Unknown names fall back to an uppercase slug so every product always
// yields a valid family string for the reserved pattern.
func FamilyFor(productName string) string {
	key := strings.ToLower(strings.TrimSpace(productName))
	if fam, ok := rawFamilyMap[key]; ok {
		return fam
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// FamilyGroups describes which product families belong to the platform
// groups the evaluators care about. Loaded from config; zero values get
// the defaults below.
type FamilyGroups struct {
	// PrimaryLogin families use login-based recency metrics and honor
	// the manual-inactivation flag.
	PrimaryLogin []string
	// SecondaryMembership families have an external membership system.
	SecondaryMembership []string
	// ModuleTracked families expose ordered content-module data.
	ModuleTracked []string
}

// DefaultFamilyGroups returns the curated platform group membership.
func DefaultFamilyGroups() FamilyGroups {
	return FamilyGroups{
		PrimaryLogin:        []string{"OGI_V1", "OGI_V2"},
		SecondaryMembership: []string{"WEALTH_CLUB"},
		ModuleTracked:       []string{"OGI_V1"},
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// IsPrimaryLogin reports whether the family uses the primary login platform.
func (g FamilyGroups) IsPrimaryLogin(family string) bool {
	return contains(g.PrimaryLogin, family)
}

// HasSecondaryMembership reports whether the family has a secondary
// membership system.
func (g FamilyGroups) HasSecondaryMembership(family string) bool {
	return contains(g.SecondaryMembership, family)
}

// TracksModules reports whether the family exposes ordered module data.
func (g FamilyGroups) TracksModules(family string) bool {
	return contains(g.ModuleTracked, family)
}
