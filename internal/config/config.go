package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"bataille/internal/domain"
)

// GameConfig mirrors data/game_config.json. Zero values fall back to the default rules.
type GameConfig struct {
	AttackBonus          int    `json:"attack_bonus"`
	DefenseBonus         int    `json:"defense_bonus"`
	MaxCharges           int    `json:"max_charges"`
	RapidStartingCharges int    `json:"rapid_starting_charges"`
	ChargeUnlockInterval int    `json:"charge_unlock_interval"`
	KrakenInterval       int    `json:"kraken_interval"`
	RapidDurationSeconds int    `json:"rapid_duration_seconds"`
	RoundTimeoutSeconds  int    `json:"round_timeout_seconds"`
	MaxTimeouts          int    `json:"max_timeouts"`
	WinnerPolicy         string `json:"winner_policy"`
	TieBreak             string `json:"tie_break"`
	// InactivityModes lists the modes watched by the inactivity watchdog. Nil keeps the default (rapid only).
	InactivityModes []string `json:"inactivity_modes"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path once per process.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}
		c, err := ParseGameConfig(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or nil if none was loaded.
func GetGameConfig() *GameConfig {
	return cfg
}

// ParseGameConfig decodes a configuration document.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &c, nil
}

// Rules converts the configuration into domain rules. A nil config yields the defaults.
func (c *GameConfig) Rules() (domain.Rules, error) {
	r := domain.DefaultRules()
	if c == nil {
		return r, nil
	}
	setInt(&r.AttackBonus, c.AttackBonus)
	setInt(&r.DefenseBonus, c.DefenseBonus)
	setInt(&r.MaxCharges, c.MaxCharges)
	setInt(&r.RapidStartingCharges, c.RapidStartingCharges)
	setInt(&r.ChargeUnlockInterval, c.ChargeUnlockInterval)
	setInt(&r.KrakenInterval, c.KrakenInterval)
	setInt(&r.MaxTimeouts, c.MaxTimeouts)
	if c.RapidDurationSeconds > 0 {
		r.RapidDuration = time.Duration(c.RapidDurationSeconds) * time.Second
	}
	if c.RoundTimeoutSeconds > 0 {
		r.RoundTimeout = time.Duration(c.RoundTimeoutSeconds) * time.Second
	}
	if c.WinnerPolicy != "" {
		r.WinnerPolicy = domain.WinnerPolicy(c.WinnerPolicy)
	}
	if c.TieBreak != "" {
		r.TieBreak = domain.TieBreak(c.TieBreak)
	}
	if c.InactivityModes != nil {
		modes, err := parseModes(c.InactivityModes)
		if err != nil {
			return r, err
		}
		r.InactivityModes = modes
	}
	return r, r.Validate()
}

// CurrentRules returns the rules of the loaded configuration, or the defaults.
func CurrentRules() (domain.Rules, error) {
	return GetGameConfig().Rules()
}

// Environment keys recognised by ApplyEnv. The standalone server reads them upper-cased.
const (
	EnvAttackBonus     = "bataille_attack_bonus"
	EnvDefenseBonus    = "bataille_defense_bonus"
	EnvRapidDuration   = "bataille_rapid_duration_sec"
	EnvRoundTimeout    = "bataille_round_timeout_sec"
	EnvMaxTimeouts     = "bataille_max_timeouts"
	EnvWinnerPolicy    = "bataille_winner_policy"
	EnvTieBreak        = "bataille_tie_break"
	EnvInactivityModes = "bataille_inactivity_modes"
)

// ApplyEnv overrides rules with values found through lookup. Malformed values are ignored.
func ApplyEnv(r domain.Rules, lookup func(key string) (string, bool)) domain.Rules {
	if v, ok := lookupInt(lookup, EnvAttackBonus); ok {
		r.AttackBonus = v
	}
	if v, ok := lookupInt(lookup, EnvDefenseBonus); ok {
		r.DefenseBonus = v
	}
	if v, ok := lookupInt(lookup, EnvRapidDuration); ok && v > 0 {
		r.RapidDuration = time.Duration(v) * time.Second
	}
	if v, ok := lookupInt(lookup, EnvRoundTimeout); ok && v > 0 {
		r.RoundTimeout = time.Duration(v) * time.Second
	}
	if v, ok := lookupInt(lookup, EnvMaxTimeouts); ok && v >= 0 {
		r.MaxTimeouts = v
	}
	if v, ok := lookup(EnvWinnerPolicy); ok && v != "" {
		r.WinnerPolicy = domain.WinnerPolicy(v)
	}
	if v, ok := lookup(EnvTieBreak); ok && v != "" {
		r.TieBreak = domain.TieBreak(v)
	}
	if v, ok := lookup(EnvInactivityModes); ok {
		if modes, err := parseModes(splitList(v)); err == nil {
			r.InactivityModes = modes
		}
	}
	return r
}

// MapLookup adapts a Nakama runtime env map to ApplyEnv.
func MapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// OSLookup reads the upper-cased keys from the process environment.
func OSLookup(key string) (string, bool) {
	return os.LookupEnv(strings.ToUpper(key))
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func lookupInt(lookup func(string) (string, bool), key string) (int, bool) {
	raw, ok := lookup(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseModes(values []string) ([]domain.Mode, error) {
	modes := make([]domain.Mode, 0, len(values))
	for _, v := range values {
		m, err := domain.ParseMode(v)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
