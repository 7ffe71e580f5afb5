package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero values so a partial file only
// overrides what it names.
type JsonConfig struct {
	CustomDataPath      *string         `json:"custom_data_path"`
	MaxConcurrency      *int            `json:"max_concurrency"`
	SiteProfile         *string         `json:"site_profile"`
	Headless            *bool           `json:"headless"`
	BrowserPath         *string         `json:"browser_path"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
	SessionTTL          *timex.Duration `json:"session_ttl"`
	ExpiryWarnDays      *int            `json:"expiry_warn_days"`
	ItemPause           *timex.Duration `json:"item_pause"`
	LoginPoll           *timex.Duration `json:"login_poll"`
	LoginTimeout        *timex.Duration `json:"login_timeout"`
	EnrollTimeout       *timex.Duration `json:"enroll_timeout"`
	CheckoutAttempts    *int            `json:"checkout_attempts"`
	CheckoutPoll        *timex.Duration `json:"checkout_poll"`
	ReclickEvery        *int            `json:"reclick_every"`
	ConfirmTimeout      *timex.Duration `json:"confirm_timeout"`
	StepTimeout         *timex.Duration `json:"step_timeout"`
	NotificationDomains []string        `json:"notification_domains"`
}

// parseJson overlays cfg with values loaded from the JSON file at path.
// An empty path means no file was requested.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrConfiguration, path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", common.ErrConfiguration, path, err)
	}

	setString(&cfg.CustomDataPath, jc.CustomDataPath)
	setString(&cfg.SiteProfile, jc.SiteProfile)
	setString(&cfg.BrowserPath, jc.BrowserPath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setInt(&cfg.MaxConcurrency, jc.MaxConcurrency)
	setInt(&cfg.ExpiryWarnDays, jc.ExpiryWarnDays)
	setInt(&cfg.CheckoutAttempts, jc.CheckoutAttempts)
	setInt(&cfg.ReclickEvery, jc.ReclickEvery)
	if jc.Headless != nil {
		cfg.Headless = *jc.Headless
	}

	setDuration(&cfg.SessionTTL, jc.SessionTTL)
	setDuration(&cfg.ItemPause, jc.ItemPause)
	setDuration(&cfg.LoginPoll, jc.LoginPoll)
	setDuration(&cfg.LoginTimeout, jc.LoginTimeout)
	setDuration(&cfg.EnrollTimeout, jc.EnrollTimeout)
	setDuration(&cfg.CheckoutPoll, jc.CheckoutPoll)
	setDuration(&cfg.ConfirmTimeout, jc.ConfirmTimeout)
	setDuration(&cfg.StepTimeout, jc.StepTimeout)

	if jc.NotificationDomains != nil {
		cfg.NotificationDomains = jc.NotificationDomains
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
