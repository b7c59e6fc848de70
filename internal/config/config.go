// File path: internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SectionLayout names the fixed cells of one phase section of a build file.
// Cells are A1 references within the section's sheet.
type SectionLayout struct {
	Sheet           string `json:"sheet"`
	DateCell        string `json:"date_cell"`
	TimeCell        string `json:"time_cell"`
	LeaderCell      string `json:"leader_cell"`
	MeetingLinkCell string `json:"meeting_link_cell"`
	LoginCodeCell   string `json:"login_code_cell"`
	ResponseURLCell string `json:"response_url_cell"`
}

// Layout describes where each build-file field lives.
type Layout struct {
	Phase1 SectionLayout `json:"phase1"`
	Phase2 SectionLayout `json:"phase2"`
}

// Config is the immutable process configuration. It is constructed once in
// main and passed by parameter; core packages never read the environment.
type Config struct {
	// Classification keyword lists. Phase 1 is checked first.
	Phase1Keywords []string `json:"phase1_keywords"`
	Phase2Keywords []string `json:"phase2_keywords"`

	// Monitoring window around "now".
	LookbackDays  int `json:"lookback_days"`
	LookaheadDays int `json:"lookahead_days"`

	// Ledger retention horizon; rows whose event date is older are pruned.
	RetentionDays int  `json:"retention_days"`
	PruneAfterRun bool `json:"prune_after_run"`

	// When set every event is treated as new, bypassing the ledger check.
	DedupDisabled bool `json:"dedup_disabled"`

	// Store the full assessment response URL in addition to the login code.
	StoreResponseURL bool `json:"store_response_url"`

	NotifySuccess bool `json:"notify_success"`
	NotifyFailure bool `json:"notify_failure"`

	LedgerPath string `json:"ledger_path"`

	CalendarIDs []string `json:"calendar_ids"`
	ICSFeeds    []string `json:"ics_feeds"`

	TemplateFileID string `json:"template_file_id"`
	RootFolderID   string `json:"root_folder_id"`

	AssessmentBaseURL string `json:"assessment_base_url"`
	AssessmentAPIKey  string `json:"assessment_api_key"`

	AdminEmail  string `json:"admin_email"`
	SenderEmail string `json:"sender_email"`

	StripeWebhookSecret string `json:"stripe_webhook_secret"`

	// Cron expression for scheduled batch runs.
	Schedule string `json:"schedule"`

	GoogleCredentialsPath string `json:"google_credentials_path"`
	GoogleTokenPath       string `json:"google_token_path"`

	Layout Layout `json:"layout"`
}

// Default returns the baseline configuration before file and environment
// overrides are applied.
func Default() Config {
	return Config{
		Phase1Keywords: []string{"phase 1", "kickoff session"},
		Phase2Keywords: []string{"phase 2", "debrief session"},
		LookbackDays:   7,
		LookaheadDays:  30,
		RetentionDays:  365,
		PruneAfterRun:  true,
		NotifySuccess:  true,
		NotifyFailure:  true,
		LedgerPath:     filepath.Join("data", "ledger.db"),
		CalendarIDs:    []string{"primary"},
		Schedule:       "*/15 * * * *",
		Layout: Layout{
			Phase1: SectionLayout{
				Sheet:           "Build",
				DateCell:        "B2",
				TimeCell:        "B3",
				LeaderCell:      "B4",
				MeetingLinkCell: "B5",
				LoginCodeCell:   "B6",
				ResponseURLCell: "B7",
			},
			Phase2: SectionLayout{
				Sheet:           "Debrief",
				DateCell:        "B2",
				TimeCell:        "B3",
				LeaderCell:      "B4",
				MeetingLinkCell: "B5",
				LoginCodeCell:   "B6",
			},
		},
	}
}

// Override carries optional settings from a config file or the environment.
// Pointer fields distinguish "not set" from an explicit false, so toggles
// that default to true can still be switched off.
type Override struct {
	Phase1Keywords []string `json:"phase1_keywords"`
	Phase2Keywords []string `json:"phase2_keywords"`

	LookbackDays  int `json:"lookback_days"`
	LookaheadDays int `json:"lookahead_days"`
	RetentionDays int `json:"retention_days"`

	PruneAfterRun    *bool `json:"prune_after_run"`
	DedupDisabled    *bool `json:"dedup_disabled"`
	StoreResponseURL *bool `json:"store_response_url"`
	NotifySuccess    *bool `json:"notify_success"`
	NotifyFailure    *bool `json:"notify_failure"`

	LedgerPath string `json:"ledger_path"`

	CalendarIDs []string `json:"calendar_ids"`
	ICSFeeds    []string `json:"ics_feeds"`

	TemplateFileID string `json:"template_file_id"`
	RootFolderID   string `json:"root_folder_id"`

	AssessmentBaseURL string `json:"assessment_base_url"`
	AssessmentAPIKey  string `json:"assessment_api_key"`

	AdminEmail  string `json:"admin_email"`
	SenderEmail string `json:"sender_email"`

	StripeWebhookSecret string `json:"stripe_webhook_secret"`

	Schedule string `json:"schedule"`

	GoogleCredentialsPath string `json:"google_credentials_path"`
	GoogleTokenPath       string `json:"google_token_path"`

	Layout Layout `json:"layout"`
}

// Merge overlays the set fields of override onto the receiver.
func (c Config) Merge(override Override) Config {
	result := c
	if len(override.Phase1Keywords) > 0 {
		result.Phase1Keywords = append([]string(nil), override.Phase1Keywords...)
	}
	if len(override.Phase2Keywords) > 0 {
		result.Phase2Keywords = append([]string(nil), override.Phase2Keywords...)
	}
	if override.LookbackDays > 0 {
		result.LookbackDays = override.LookbackDays
	}
	if override.LookaheadDays > 0 {
		result.LookaheadDays = override.LookaheadDays
	}
	if override.RetentionDays > 0 {
		result.RetentionDays = override.RetentionDays
	}
	for _, field := range []struct {
		dst *bool
		src *bool
	}{
		{&result.PruneAfterRun, override.PruneAfterRun},
		{&result.DedupDisabled, override.DedupDisabled},
		{&result.StoreResponseURL, override.StoreResponseURL},
		{&result.NotifySuccess, override.NotifySuccess},
		{&result.NotifyFailure, override.NotifyFailure},
	} {
		if field.src != nil {
			*field.dst = *field.src
		}
	}
	if strings.TrimSpace(override.LedgerPath) != "" {
		result.LedgerPath = strings.TrimSpace(override.LedgerPath)
	}
	if len(override.CalendarIDs) > 0 {
		result.CalendarIDs = append([]string(nil), override.CalendarIDs...)
	}
	if len(override.ICSFeeds) > 0 {
		result.ICSFeeds = append([]string(nil), override.ICSFeeds...)
	}
	for _, field := range []struct {
		dst *string
		src string
	}{
		{&result.TemplateFileID, override.TemplateFileID},
		{&result.RootFolderID, override.RootFolderID},
		{&result.AssessmentBaseURL, override.AssessmentBaseURL},
		{&result.AssessmentAPIKey, override.AssessmentAPIKey},
		{&result.AdminEmail, override.AdminEmail},
		{&result.SenderEmail, override.SenderEmail},
		{&result.StripeWebhookSecret, override.StripeWebhookSecret},
		{&result.Schedule, override.Schedule},
		{&result.GoogleCredentialsPath, override.GoogleCredentialsPath},
		{&result.GoogleTokenPath, override.GoogleTokenPath},
	} {
		if strings.TrimSpace(field.src) != "" {
			*field.dst = strings.TrimSpace(field.src)
		}
	}
	if override.Layout.Phase1.Sheet != "" {
		result.Layout.Phase1 = override.Layout.Phase1
	}
	if override.Layout.Phase2.Sheet != "" {
		result.Layout.Phase2 = override.Layout.Phase2
	}
	return result
}

// Load builds the configuration: defaults, then the optional JSON file, then
// environment overrides. An empty path falls back to BUILDFLOW_CONFIG_FILE.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("BUILDFLOW_CONFIG_FILE")
	}
	if path = strings.TrimSpace(path); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	return cfg, nil
}

func loadFile(path string) (Override, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Override{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Override
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Override{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func loadEnv() (Override, error) {
	cfg := Override{}
	cfg.Phase1Keywords = splitList(os.Getenv("BUILDFLOW_PHASE1_KEYWORDS"))
	cfg.Phase2Keywords = splitList(os.Getenv("BUILDFLOW_PHASE2_KEYWORDS"))
	cfg.CalendarIDs = splitList(os.Getenv("BUILDFLOW_CALENDAR_IDS"))
	cfg.ICSFeeds = splitList(os.Getenv("BUILDFLOW_ICS_FEEDS"))

	for _, field := range []struct {
		dst *int
		key string
	}{
		{&cfg.LookbackDays, "BUILDFLOW_LOOKBACK_DAYS"},
		{&cfg.LookaheadDays, "BUILDFLOW_LOOKAHEAD_DAYS"},
		{&cfg.RetentionDays, "BUILDFLOW_RETENTION_DAYS"},
	} {
		raw := strings.TrimSpace(os.Getenv(field.key))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Override{}, fmt.Errorf("parse %s: %w", field.key, err)
		}
		*field.dst = value
	}

	for _, field := range []struct {
		dst **bool
		key string
	}{
		{&cfg.PruneAfterRun, "BUILDFLOW_PRUNE_AFTER_RUN"},
		{&cfg.DedupDisabled, "BUILDFLOW_DEDUP_DISABLED"},
		{&cfg.StoreResponseURL, "BUILDFLOW_STORE_RESPONSE_URL"},
		{&cfg.NotifySuccess, "BUILDFLOW_NOTIFY_SUCCESS"},
		{&cfg.NotifyFailure, "BUILDFLOW_NOTIFY_FAILURE"},
	} {
		raw := strings.TrimSpace(os.Getenv(field.key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return Override{}, fmt.Errorf("parse %s: %w", field.key, err)
		}
		*field.dst = &value
	}

	cfg.LedgerPath = os.Getenv("BUILDFLOW_LEDGER_PATH")
	cfg.TemplateFileID = os.Getenv("BUILDFLOW_TEMPLATE_FILE_ID")
	cfg.RootFolderID = os.Getenv("BUILDFLOW_ROOT_FOLDER_ID")
	cfg.AssessmentBaseURL = os.Getenv("BUILDFLOW_ASSESSMENT_URL")
	cfg.AssessmentAPIKey = os.Getenv("BUILDFLOW_ASSESSMENT_KEY")
	cfg.AdminEmail = os.Getenv("BUILDFLOW_ADMIN_EMAIL")
	cfg.SenderEmail = os.Getenv("BUILDFLOW_SENDER_EMAIL")
	cfg.StripeWebhookSecret = os.Getenv("BUILDFLOW_STRIPE_WEBHOOK_SECRET")
	cfg.Schedule = os.Getenv("BUILDFLOW_SCHEDULE")
	cfg.GoogleCredentialsPath = os.Getenv("BUILDFLOW_GOOGLE_CREDENTIALS")
	cfg.GoogleTokenPath = os.Getenv("BUILDFLOW_GOOGLE_TOKEN")
	return cfg, nil
}

// Validate checks the invariants the core relies on.
func (c Config) Validate() error {
	if len(c.Phase1Keywords) == 0 || len(c.Phase2Keywords) == 0 {
		return errors.New("both phase keyword lists are required")
	}
	seen := make(map[string]struct{}, len(c.Phase1Keywords))
	for _, kw := range c.Phase1Keywords {
		seen[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}
	for _, kw := range c.Phase2Keywords {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(kw))]; ok {
			return fmt.Errorf("keyword %q appears in both phase lists", kw)
		}
	}
	if c.LookbackDays < 0 || c.LookaheadDays <= 0 {
		return errors.New("monitoring window must cover at least one day ahead")
	}
	if c.RetentionDays <= 0 {
		return errors.New("retention_days must be positive")
	}
	if strings.TrimSpace(c.LedgerPath) == "" {
		return errors.New("ledger_path required")
	}
	return nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
