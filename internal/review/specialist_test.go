package review

import "testing"

func TestNormalizeType_Aliases(t *testing.T) {
	cases := map[string]string{
		"security":          TypeSecurity,
		"security-sentinel": TypeSecurity,
		"SECURITY":          TypeSecurity,
		"perf":              TypePerformance,
		"performance":       TypePerformance,
		"arch":              TypeArchitecture,
		"architecture":      TypeArchitecture,
		"simple":            TypeSimplicity,
		"simplicity":        TypeSimplicity,
	}
	for in, want := range cases {
		if got := NormalizeType(in); got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeType_UnknownPassesThrough(t *testing.T) {
	if got := NormalizeType("api-compliance"); got != "api-compliance" {
		t.Errorf("NormalizeType(unknown) = %q, want unchanged", got)
	}
}

func TestIsBuiltin(t *testing.T) {
	if !IsBuiltin(TypeSecurity) {
		t.Error("expected security to be builtin")
	}
	if IsBuiltin("api-compliance") {
		t.Error("expected custom type to not be builtin")
	}
}

func TestDisplayNameAndAgentName(t *testing.T) {
	if DisplayName(TypeSecurity) != "Security Sentinel" {
		t.Errorf("DisplayName = %q", DisplayName(TypeSecurity))
	}
	if AgentName(TypePerformance) != "performance-oracle" {
		t.Errorf("AgentName = %q", AgentName(TypePerformance))
	}
	if DisplayName("My Review") != "My Review" {
		t.Errorf("DisplayName(custom) = %q, want unchanged", DisplayName("My Review"))
	}
	if AgentName("Code Quality") != "code-quality" {
		t.Errorf("AgentName(custom) = %q, want code-quality", AgentName("Code Quality"))
	}
}

func TestDefaultFocusAreas(t *testing.T) {
	areas := DefaultFocusAreas(TypeSecurity)
	if len(areas) == 0 {
		t.Fatal("expected non-empty security focus areas")
	}
	found := false
	for _, a := range areas {
		if a == "SQL injection vulnerabilities" {
			found = true
		}
	}
	if !found {
		t.Error("expected SQL injection in security focus areas")
	}

	if areas := DefaultFocusAreas("custom-thing"); areas != nil {
		t.Errorf("expected nil focus areas for custom type, got %v", areas)
	}
}
