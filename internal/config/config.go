package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Date is a calendar day parsed from "2006-01-02".
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.Time.Format("2006-01-02"), nil
}

// IsZero reports whether the date was left unset.
func (d Date) IsZero() bool {
	return d.Time.IsZero()
}

type BlackoutDate struct {
	Date   Date   `yaml:"date"`
	Reason string `yaml:"reason"`
}

// Season places league weeks on the calendar. Week 1 is the first match day
// on or after StartDate; blacked-out match days are skipped.
type Season struct {
	StartDate     Date           `yaml:"start_date"`
	MatchDay      string         `yaml:"match_day"`
	MatchTime     string         `yaml:"match_time"`
	BlackoutDates []BlackoutDate `yaml:"blackout_dates"`
}

// Weekday resolves MatchDay, e.g. "wednesday" or "Wed".
func (s Season) Weekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s.MatchDay))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid match_day %q", s.MatchDay)
}

// Clock resolves MatchTime as hours and minutes.
func (s Season) Clock() (int, int, error) {
	t, err := time.Parse("15:04", s.MatchTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid match_time %q: %w", s.MatchTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// SetLine is a match outcome expressed as sets won by the winner and loser.
type SetLine struct {
	Won  int
	Lost int
}

func (s SetLine) String() string {
	return fmt.Sprintf("%d-%d", s.Won, s.Lost)
}

// ParseSetLine accepts "3-1", "3_1", "3,1" or "3:1".
func ParseSetLine(s string) (SetLine, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == '-' || r == '_' || r == ',' || r == ':'
	})
	if len(fields) != 2 {
		return SetLine{}, fmt.Errorf("invalid set line %q", s)
	}
	won, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return SetLine{}, fmt.Errorf("invalid set line %q: %w", s, err)
	}
	lost, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return SetLine{}, fmt.Errorf("invalid set line %q: %w", s, err)
	}
	return SetLine{Won: won, Lost: lost}, nil
}

// MarginBonus maps an exact set line to a flat rating bonus for the winner.
type MarginBonus map[SetLine]int

func (m *MarginBonus) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]int
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("margin_bonus: %w", err)
	}
	out := make(MarginBonus, len(raw))
	for k, v := range raw {
		line, err := ParseSetLine(k)
		if err != nil {
			return fmt.Errorf("margin_bonus: %w", err)
		}
		out[line] = v
	}
	*m = out
	return nil
}

func (m MarginBonus) MarshalYAML() (interface{}, error) {
	raw := make(map[string]int, len(m))
	for k, v := range m {
		raw[k.String()] = v
	}
	return raw, nil
}

// Rating holds the tunables of the rating model.
type Rating struct {
	BaseRating          int         `yaml:"base_rating"`
	KFactor             float64     `yaml:"k_factor"`
	PointDiffMultiplier float64     `yaml:"point_diff_multiplier"`
	PointDiffCap        int         `yaml:"point_diff_cap"`
	PlacementMatches    int         `yaml:"placement_matches"`
	InactivityPenalty   int         `yaml:"inactivity_penalty"`
	MarginBonus         MarginBonus `yaml:"margin_bonus"`

	// Loser penalty blend: base * (LoserFloor + LoserClosenessWeight*closeness)
	// minus point factor * LoserPointOffset.
	LoserFloor           float64 `yaml:"loser_floor"`
	LoserClosenessWeight float64 `yaml:"loser_closeness_weight"`
	LoserPointOffset     float64 `yaml:"loser_point_offset"`

	// Close-match override thresholds.
	CloseMatchRatingGap int     `yaml:"close_match_rating_gap"`
	CloseMatchSetGap    int     `yaml:"close_match_set_gap"`
	CloseMatchShare     float64 `yaml:"close_match_share"`
}

// Schedule holds the pairing scheduler tunables.
type Schedule struct {
	MatchesPerTeam   int   `yaml:"matches_per_team"`
	BalancedSpread   int   `yaml:"balanced_spread"`
	BalancedMinTeams int   `yaml:"balanced_min_teams"`
	MaxSteps         int   `yaml:"max_steps"`
	Seed             int64 `yaml:"seed"` // 0 seeds from the clock
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	DSN       string `yaml:"dsn"`
	BackupDir string `yaml:"backup_dir"`
}

type Notify struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	DryRun          bool   `yaml:"dry_run"`
}

type Config struct {
	Season   Season   `yaml:"season"`
	Rating   Rating   `yaml:"rating"`
	Schedule Schedule `yaml:"schedule"`
	Storage  Storage  `yaml:"storage"`
	Notify   Notify   `yaml:"notify"`
}

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultRating returns the stock rating tunables.
func DefaultRating() Rating {
	return Rating{
		BaseRating:          1000,
		KFactor:             20,
		PointDiffMultiplier: 0.1,
		PointDiffCap:        75,
		PlacementMatches:    3,
		InactivityPenalty:   10,
		MarginBonus: MarginBonus{
			{Won: 3, Lost: 0}: 5,
			{Won: 3, Lost: 1}: 3,
			{Won: 3, Lost: 2}: 1,
		},
		LoserFloor:           0.6,
		LoserClosenessWeight: 0.4,
		LoserPointOffset:     0.5,
		CloseMatchRatingGap:  15,
		CloseMatchSetGap:     1,
		CloseMatchShare:      0.2,
	}
}

// Default returns a Config with every field at its stock value.
func Default() *Config {
	return &Config{
		Season: Season{
			MatchDay:  "wednesday",
			MatchTime: "19:00",
		},
		Rating: DefaultRating(),
		Schedule: Schedule{
			MatchesPerTeam:   1,
			BalancedSpread:   100,
			BalancedMinTeams: 4,
			MaxSteps:         2_000_000,
		},
		Storage: Storage{
			Backend:   BackendJSON,
			Dir:       "data",
			DSN:       "standings.db",
			BackupDir: "backups",
		},
	}
}

// LoadFromBytes parses YAML over the defaults and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	// A margin_bonus block in the file replaces the default table wholesale.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// ApplyEnv overrides secrets from the environment.
func (c *Config) ApplyEnv() {
	if url, ok := os.LookupEnv("STANDINGS_SLACK_WEBHOOK_URL"); ok {
		c.Notify.SlackWebhookURL = url
	}
}

func (c *Config) validate() error {
	if _, err := c.Season.Weekday(); err != nil {
		return err
	}
	if _, _, err := c.Season.Clock(); err != nil {
		return err
	}

	r := c.Rating
	if r.BaseRating < 0 {
		return fmt.Errorf("base_rating must not be negative, got %d", r.BaseRating)
	}
	if r.KFactor < 0 {
		return fmt.Errorf("k_factor must not be negative, got %g", r.KFactor)
	}
	if r.PointDiffMultiplier < 0 {
		return fmt.Errorf("point_diff_multiplier must not be negative, got %g", r.PointDiffMultiplier)
	}
	if r.PointDiffCap < 0 {
		return fmt.Errorf("point_diff_cap must not be negative, got %d", r.PointDiffCap)
	}
	if r.PlacementMatches < 0 {
		return fmt.Errorf("placement_matches must not be negative, got %d", r.PlacementMatches)
	}
	if r.InactivityPenalty < 0 {
		return fmt.Errorf("inactivity_penalty must not be negative, got %d", r.InactivityPenalty)
	}
	if r.LoserFloor < 0 || r.LoserClosenessWeight < 0 || r.LoserPointOffset < 0 {
		return fmt.Errorf("loser blend factors must not be negative")
	}
	if r.CloseMatchRatingGap < 0 || r.CloseMatchSetGap < 0 || r.CloseMatchShare < 0 {
		return fmt.Errorf("close match thresholds must not be negative")
	}
	for line := range r.MarginBonus {
		if line.Won < 0 || line.Lost < 0 {
			return fmt.Errorf("margin_bonus %s: set counts must not be negative", line)
		}
		if line.Won <= line.Lost {
			return fmt.Errorf("margin_bonus %s: winner must have more sets than loser", line)
		}
	}

	s := c.Schedule
	if s.MatchesPerTeam < 1 {
		return fmt.Errorf("matches_per_team must be at least 1, got %d", s.MatchesPerTeam)
	}
	if s.BalancedSpread < 0 {
		return fmt.Errorf("balanced_spread must not be negative, got %d", s.BalancedSpread)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", s.MaxSteps)
	}

	switch c.Storage.Backend {
	case BackendJSON:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir is required for the json backend")
		}
	case BackendSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}
