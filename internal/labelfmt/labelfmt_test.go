package labelfmt

import (
	"reflect"
	"testing"
)

func TestFormatParse_RoundTrip(t *testing.T) {
	label := Format("OGI_V1", "Course Completed")
	if label != "SYS:OGI_V1 - Course Completed" {
		t.Fatalf("unexpected label %q", label)
	}

	fam, desc, ok := Parse(label)
	if !ok {
		t.Fatal("expected Parse to succeed")
	}
	if fam != "OGI_V1" || desc != "Course Completed" {
		t.Errorf("got family=%q desc=%q", fam, desc)
	}
}

func TestIsSystemOwned(t *testing.T) {
	cases := map[string]bool{
		"SYS:OGI_V1 - Course Completed":   true,
		"SYS:GLOBAL - Globally Inactive":  true,
		"SYS:WEALTH_CLUB - Inactive 30d":  true,
		"VIP Customer":                    false,
		"SYS:ogi_v1 - lowercase family":   false,
		"SYS:OGI_V1 -missing space":       false,
		"SYS:OGI_V1 - ":                   false,
		"prefix SYS:OGI_V1 - not at start": false,
		"":                                false,
	}
	for label, want := range cases {
		if got := IsSystemOwned(label); got != want {
			t.Errorf("IsSystemOwned(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestClassify_PartitionsByShape(t *testing.T) {
	system, native := Classify([]string{
		"VIP Customer",
		"SYS:OGI_V1 - Active",
		"Refund Requested",
		"SYS:GLOBAL - Globally Inactive",
	})
	if !reflect.DeepEqual(system, []string{"SYS:OGI_V1 - Active", "SYS:GLOBAL - Globally Inactive"}) {
		t.Errorf("system = %v", system)
	}
	if !reflect.DeepEqual(native, []string{"VIP Customer", "Refund Requested"}) {
		t.Errorf("native = %v", native)
	}
}

func TestIsExempt(t *testing.T) {
	if !IsExempt("Left a Testimonial 2024") {
		t.Error("testimonial marker should be exempt")
	}
	if !IsExempt("pending REVIEW call") {
		t.Error("review marker should be exempt")
	}
	if IsExempt("SYS:OGI_V1 - Active") {
		t.Error("plain system label must not be exempt")
	}
}

func TestFamilyFor(t *testing.T) {
	cases := map[string]string{
		"O Grande Investidor":  "OGI_V1",
		"ogi":                  "OGI_V1",
		"OGI 2.0":              "OGI_V2",
		"Wealth Club":          "WEALTH_CLUB",
		"Mentoria":             "MENTORSHIP",
		"Some New Product 3":   "SOME_NEW_PRODUCT_3",
		"  spaced name  ":      "SPACED_NAME",
	}
	for in, want := range cases {
		if got := FamilyFor(in); got != want {
			t.Errorf("FamilyFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFamilyGroups_Defaults(t *testing.T) {
	g := DefaultFamilyGroups()
	if !g.IsPrimaryLogin("OGI_V1") || !g.IsPrimaryLogin("OGI_V2") {
		t.Error("OGI families should be primary-login")
	}
	if g.IsPrimaryLogin("WEALTH_CLUB") {
		t.Error("WEALTH_CLUB is not primary-login")
	}
	if !g.HasSecondaryMembership("WEALTH_CLUB") {
		t.Error("WEALTH_CLUB has a secondary membership system")
	}
	if !g.TracksModules("OGI_V1") || g.TracksModules("OGI_V2") {
		t.Error("only OGI_V1 exposes module data")
	}
}
