package service

import (
	"fmt"
	"os"
	"strings"

	"fieldops_backend/internal/timeconv"

	"gopkg.in/yaml.v3"
)

// WindowConfig describes how visit windows are derived for a category.
type WindowConfig struct {
	FixedStart       string `yaml:"fixedStart"`
	FixedEnd         string `yaml:"fixedEnd"`
	DefaultStart     string `yaml:"defaultStart"`
	DefaultEnd       string `yaml:"defaultEnd"`
	SpanBusinessDays bool   `yaml:"spanBusinessDays"`
}

// CategoryConfig binds one appointment kind to its field-service
// category and the CRM properties that mirror it.
type CategoryConfig struct {
	DisplayName           string       `yaml:"displayName"`
	ZuperCategoryUID      string       `yaml:"zuperCategoryUid"`
	DateProperty          string       `yaml:"dateProperty"`
	AssigneeProperty      string       `yaml:"assigneeProperty"`
	StatusProperty        string       `yaml:"statusProperty"`
	ReadyStatusValue      string       `yaml:"readyStatusValue"`
	BoundaryStartProperty string       `yaml:"boundaryStartProperty"`
	BoundaryEndProperty   string       `yaml:"boundaryEndProperty"`
	AllowDateOnlyFallback bool         `yaml:"allowDateOnlyFallback"`
	RequireClocks         bool         `yaml:"requireClocks"`
	NotifyOnCancel        bool         `yaml:"notifyOnCancel"`
	AllowedRoles          []string     `yaml:"allowedRoles"`
	Window                WindowConfig `yaml:"window"`
}

// WindowSpec converts the category's window settings for the time converter.
func (c CategoryConfig) WindowSpec() timeconv.WindowSpec {
	return timeconv.WindowSpec{
		FixedStart:       c.Window.FixedStart,
		FixedEnd:         c.Window.FixedEnd,
		DefaultStart:     c.Window.DefaultStart,
		DefaultEnd:       c.Window.DefaultEnd,
		SpanBusinessDays: c.Window.SpanBusinessDays,
	}
}

// HasBoundaryProperties reports whether this category mirrors window
// boundaries onto dedicated CRM properties.
func (c CategoryConfig) HasBoundaryProperties() bool {
	return c.BoundaryStartProperty != "" && c.BoundaryEndProperty != ""
}

// RoleAllowed reports whether the roles may schedule this category. An
// empty allow-list means any authenticated user.
func (c CategoryConfig) RoleAllowed(roles []string) bool {
	if len(c.AllowedRoles) == 0 {
		return true
	}
	return hasAnyRole(roles, c.AllowedRoles)
}

// Config is the scheduling module's category and policy configuration.
// It is loaded once at startup and handed to the service explicitly;
// nothing in this module reads mapping state from globals.
type Config struct {
	DefaultTimezone  string                    `yaml:"defaultTimezone"`
	ManagerRoles     []string                  `yaml:"managerRoles"`
	TestModeRoles    []string                  `yaml:"testModeRoles"`
	DealIDFieldLabel string                    `yaml:"dealIdFieldLabel"`
	Categories       map[string]CategoryConfig `yaml:"categories"`
}

// Category resolves a schedule type case-insensitively.
func (c *Config) Category(scheduleType string) (CategoryConfig, bool) {
	key := strings.ToLower(strings.TrimSpace(scheduleType))
	cat, ok := c.Categories[key]
	return cat, ok
}

// CategoryNameByUID maps a field-service category uid back to its
// display name. Empty when unknown.
func (c *Config) CategoryNameByUID(uid string) string {
	if uid == "" {
		return ""
	}
	for _, cat := range c.Categories {
		if strings.EqualFold(cat.ZuperCategoryUID, uid) {
			return cat.DisplayName
		}
	}
	return ""
}

// IsManager reports whether any role grants the manager override.
func (c *Config) IsManager(roles []string) bool {
	return hasAnyRole(roles, c.ManagerRoles)
}

// TestModeAllowed reports whether any role may run test-mode requests.
func (c *Config) TestModeAllowed(roles []string) bool {
	return hasAnyRole(roles, c.TestModeRoles)
}

func hasAnyRole(roles, allowed []string) bool {
	for _, role := range roles {
		for _, want := range allowed {
			if strings.EqualFold(role, want) {
				return true
			}
		}
	}
	return false
}

// DefaultConfig returns the built-in category mapping used when no
// config file is present.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimezone:  "America/Denver",
		ManagerRoles:     []string{"manager", "admin"},
		TestModeRoles:    []string{"admin", "qa"},
		DealIDFieldLabel: "HubSpot Deal ID",
		Categories: map[string]CategoryConfig{
			"survey": {
				DisplayName:      "Survey",
				DateProperty:     "survey_scheduled_date",
				AssigneeProperty: "surveyor_name",
				StatusProperty:   "survey_status",
				ReadyStatusValue: "Ready for Survey",
				RequireClocks:    true,
				NotifyOnCancel:   true,
				Window:           WindowConfig{DefaultStart: "08:00", DefaultEnd: "16:00"},
			},
			"installation": {
				DisplayName:           "Installation",
				DateProperty:          "install_scheduled_date",
				AssigneeProperty:      "install_crew_lead",
				StatusProperty:        "install_status",
				ReadyStatusValue:      "Ready for Install",
				BoundaryStartProperty: "install_start_date",
				BoundaryEndProperty:   "install_end_date",
				AllowDateOnlyFallback: true,
				Window: WindowConfig{
					DefaultStart:     "08:00",
					DefaultEnd:       "16:00",
					SpanBusinessDays: true,
				},
			},
			"inspection": {
				DisplayName:      "Inspection",
				DateProperty:     "inspection_scheduled_date",
				AssigneeProperty: "inspector_name",
				StatusProperty:   "inspection_status",
				ReadyStatusValue: "Ready for Inspection",
				Window:           WindowConfig{FixedStart: "08:00", FixedEnd: "16:00"},
			},
		},
	}
}

// LoadConfig reads the category mapping from a YAML file. A missing
// path falls back to DefaultConfig so development setups work without
// any file on disk.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read scheduling config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scheduling config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	base := DefaultConfig()
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = base.DefaultTimezone
	}
	if len(c.ManagerRoles) == 0 {
		c.ManagerRoles = base.ManagerRoles
	}
	if len(c.TestModeRoles) == 0 {
		c.TestModeRoles = base.TestModeRoles
	}
	if c.DealIDFieldLabel == "" {
		c.DealIDFieldLabel = base.DealIDFieldLabel
	}
	if len(c.Categories) == 0 {
		c.Categories = base.Categories
		return
	}

	// Category keys are matched case-insensitively everywhere else.
	normalized := make(map[string]CategoryConfig, len(c.Categories))
	for key, cat := range c.Categories {
		normalized[strings.ToLower(strings.TrimSpace(key))] = cat
	}
	c.Categories = normalized
}

func (c *Config) validate() error {
	for key, cat := range c.Categories {
		if cat.DisplayName == "" {
			return fmt.Errorf("scheduling config: category %q needs a displayName", key)
		}
		if cat.DateProperty == "" {
			return fmt.Errorf("scheduling config: category %q needs a dateProperty", key)
		}
		if cat.StatusProperty == "" || cat.ReadyStatusValue == "" {
			return fmt.Errorf("scheduling config: category %q needs statusProperty and readyStatusValue", key)
		}
	}
	return nil
}
