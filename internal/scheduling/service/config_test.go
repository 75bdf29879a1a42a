package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%q) failed: %v", path, err)
		}
		if cfg.DefaultTimezone != "America/Denver" {
			t.Fatalf("unexpected default timezone %q", cfg.DefaultTimezone)
		}
		if len(cfg.Categories) != 3 {
			t.Fatalf("expected built-in categories, got %d", len(cfg.Categories))
		}
		survey, ok := cfg.Category("survey")
		if !ok || !survey.RequireClocks {
			t.Fatalf("survey category misconfigured: %+v", survey)
		}
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	body := `
defaultTimezone: America/Phoenix
dealIdFieldLabel: Deal Reference
categories:
  Survey:
    displayName: Survey
    zuperCategoryUid: cat-1
    dateProperty: survey_scheduled_date
    statusProperty: survey_status
    readyStatusValue: Ready for Survey
    requireClocks: true
    window:
      defaultStart: "07:00"
      defaultEnd: "15:00"
`
	path := filepath.Join(t.TempDir(), "scheduling.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.DefaultTimezone != "America/Phoenix" {
		t.Fatalf("timezone not honored, got %q", cfg.DefaultTimezone)
	}
	if cfg.DealIDFieldLabel != "Deal Reference" {
		t.Fatalf("deal id label not honored, got %q", cfg.DealIDFieldLabel)
	}
	// Unset policy fields fall back to the built-ins.
	if !cfg.IsManager([]string{"manager"}) {
		t.Fatalf("manager roles should default")
	}

	if len(cfg.Categories) != 1 {
		t.Fatalf("file categories replace the built-ins, got %d", len(cfg.Categories))
	}
	cat, ok := cfg.Category("SURVEY")
	if !ok {
		t.Fatalf("category keys should normalize to lowercase")
	}
	if cat.ZuperCategoryUID != "cat-1" || cat.Window.DefaultStart != "07:00" {
		t.Fatalf("unexpected category %+v", cat)
	}
}

func TestLoadConfigRejectsIncompleteCategory(t *testing.T) {
	body := `
categories:
  survey:
    displayName: Survey
    statusProperty: survey_status
    readyStatusValue: Ready for Survey
`
	path := filepath.Join(t.TempDir(), "scheduling.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for missing dateProperty")
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduling.yaml")
	if err := os.WriteFile(path, []byte("categories: [not a map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConfigRoleHelpers(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.IsManager([]string{"viewer", "ADMIN"}) {
		t.Fatalf("manager roles should match case-insensitively")
	}
	if cfg.IsManager([]string{"viewer"}) {
		t.Fatalf("viewer is not a manager")
	}
	if !cfg.TestModeAllowed([]string{"qa"}) {
		t.Fatalf("qa should be allowed test mode")
	}
	if cfg.TestModeAllowed([]string{"scheduler"}) {
		t.Fatalf("scheduler should not be allowed test mode")
	}

	open := CategoryConfig{}
	if !open.RoleAllowed([]string{"anyone"}) {
		t.Fatalf("empty allow-list admits any role")
	}
	restricted := CategoryConfig{AllowedRoles: []string{"installer"}}
	if restricted.RoleAllowed([]string{"scheduler"}) {
		t.Fatalf("role outside the allow-list must be rejected")
	}
	if !restricted.RoleAllowed([]string{"Installer"}) {
		t.Fatalf("allow-list should match case-insensitively")
	}
}

func TestCategoryNameByUID(t *testing.T) {
	cfg := testConfig()

	if got := cfg.CategoryNameByUID("cat-install-uid"); got != "Installation" {
		t.Fatalf("expected Installation, got %q", got)
	}
	if got := cfg.CategoryNameByUID("unknown"); got != "" {
		t.Fatalf("unknown uid should map to empty, got %q", got)
	}
	if got := cfg.CategoryNameByUID(""); got != "" {
		t.Fatalf("empty uid should map to empty, got %q", got)
	}
}

func TestCategoryBoundaryProperties(t *testing.T) {
	cfg := DefaultConfig()

	install, _ := cfg.Category("installation")
	if !install.HasBoundaryProperties() {
		t.Fatalf("installation mirrors boundary properties")
	}
	survey, _ := cfg.Category("survey")
	if survey.HasBoundaryProperties() {
		t.Fatalf("survey has no boundary properties")
	}
}
