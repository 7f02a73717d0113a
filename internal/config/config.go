package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultReconcileSchedule rebuilds leaderboard stats nightly at 03:30.
const DefaultReconcileSchedule = "30 3 * * *"

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	MeiliSearchHost string
	MeiliMasterKey  string

	JWTSecret       string
	StripeSecretKey string

	LogLevel  string
	LogFormat string

	RewardsFile       string
	ReconcileSchedule string

	InviteFailureLimit  int
	InviteFailureWindow time.Duration
	InviteIssueCooldown time.Duration

	Rewards Rewards
}

// Rewards holds point amounts and the rank ladder. Defaults apply unless REWARDS_FILE
// points to a YAML override.
type Rewards struct {
	WelcomeBonus     int         `yaml:"welcome_bonus"`
	DailyLoginBonus  int         `yaml:"daily_login_bonus"`
	Streak7DayBonus  int         `yaml:"streak_7_day_bonus"`
	Streak30DayBonus int         `yaml:"streak_30_day_bonus"`
	InviteBonus      int         `yaml:"invite_bonus"`
	Ranks            []RankLevel `yaml:"ranks"`
}

type RankLevel struct {
	Name      string `yaml:"name"`
	MinPoints int    `yaml:"min_points"`
}

func DefaultRewards() Rewards {
	return Rewards{
		WelcomeBonus:     100,
		DailyLoginBonus:  10,
		Streak7DayBonus:  50,
		Streak30DayBonus: 200,
		InviteBonus:      100,
		Ranks: []RankLevel{
			{Name: "Newcomer", MinPoints: 0},
			{Name: "Member", MinPoints: 100},
			{Name: "Regular", MinPoints: 600},
			{Name: "Contributor", MinPoints: 3000},
			{Name: "Veteran", MinPoints: 8000},
			{Name: "Legend", MinPoints: 20000},
		},
	}
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RewardsFile:       os.Getenv("REWARDS_FILE"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", DefaultReconcileSchedule),
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "change-me"
	}

	var err error
	cfg.InviteFailureLimit, err = strconv.Atoi(getEnv("INVITE_FAILURE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_FAILURE_LIMIT: %w", err)
	}
	cfg.InviteFailureWindow, err = parseDuration(getEnv("INVITE_FAILURE_WINDOW", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_FAILURE_WINDOW: %w", err)
	}
	cfg.InviteIssueCooldown, err = parseDuration(getEnv("INVITE_ISSUE_COOLDOWN", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_ISSUE_COOLDOWN: %w", err)
	}

	cfg.Rewards = DefaultRewards()
	if cfg.RewardsFile != "" {
		rewards, err := LoadRewards(cfg.RewardsFile)
		if err != nil {
			return nil, err
		}
		cfg.Rewards = rewards
	}

	return cfg, nil
}

// LoadRewards reads a YAML reward table. Omitted amounts keep their defaults.
func LoadRewards(path string) (Rewards, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rewards{}, fmt.Errorf("read rewards file: %w", err)
	}
	return ParseRewards(raw)
}

func ParseRewards(raw []byte) (Rewards, error) {
	rewards := DefaultRewards()
	var override Rewards
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Rewards{}, fmt.Errorf("parse rewards file: %w", err)
	}

	if override.WelcomeBonus != 0 {
		rewards.WelcomeBonus = override.WelcomeBonus
	}
	if override.DailyLoginBonus != 0 {
		rewards.DailyLoginBonus = override.DailyLoginBonus
	}
	if override.Streak7DayBonus != 0 {
		rewards.Streak7DayBonus = override.Streak7DayBonus
	}
	if override.Streak30DayBonus != 0 {
		rewards.Streak30DayBonus = override.Streak30DayBonus
	}
	if override.InviteBonus != 0 {
		rewards.InviteBonus = override.InviteBonus
	}
	if len(override.Ranks) > 0 {
		rewards.Ranks = override.Ranks
	}

	if err := rewards.Validate(); err != nil {
		return Rewards{}, err
	}
	return rewards, nil
}

// Validate checks the rank ladder starts at zero and is strictly increasing.
func (r Rewards) Validate() error {
	if len(r.Ranks) == 0 {
		return fmt.Errorf("rank table is empty")
	}
	if r.Ranks[0].MinPoints != 0 {
		return fmt.Errorf("first rank must start at 0 points, got %d", r.Ranks[0].MinPoints)
	}
	for i := 1; i < len(r.Ranks); i++ {
		if r.Ranks[i].MinPoints <= r.Ranks[i-1].MinPoints {
			return fmt.Errorf("rank %q threshold %d must be greater than %q threshold %d",
				r.Ranks[i].Name, r.Ranks[i].MinPoints, r.Ranks[i-1].Name, r.Ranks[i-1].MinPoints)
		}
	}
	for _, amount := range []int{r.WelcomeBonus, r.DailyLoginBonus, r.Streak7DayBonus, r.Streak30DayBonus, r.InviteBonus} {
		if amount < 0 {
			return fmt.Errorf("reward amounts must not be negative")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
