package config

import (
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	BotHandleTimeout time.Duration `mapstructure:"bot_handle_timeout"`

	// AdminIDs is a comma-separated list in the environment; kept as
	// strings because that is what viper's slice hook produces.
	AdminIDs []string `mapstructure:"admin_ids"`

	CatalogFile string `mapstructure:"catalog_file"`

	HTTPListen        string        `mapstructure:"http_listen"`
	KeepAliveURL      string        `mapstructure:"keep_alive_url"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
}

func New() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		logrus.Fatalf("unmarshalling config: %v", err)
	}
	return cfg
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return slices.Contains(c.AdminIDs, strconv.FormatInt(telegramID, 10))
}

func (c *Config) AdminTelegramIDs() []int64 {
	ids := make([]int64, 0, len(c.AdminIDs))
	for _, raw := range c.AdminIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logrus.Warnf("skipping malformed admin id %q", raw)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func SetupCommon() {
	viper.SetDefault("bot_handle_timeout", "10s")
	viper.SetDefault("http_listen", ":8080")
	viper.SetDefault("keep_alive_interval", "5m")
	viper.SetEnvPrefix("MULTICHAT")

	viper.MustBindEnv("telegram_token")
	viper.MustBindEnv("postgres_dsn")

	// Optional keys still need an explicit bind: AutomaticEnv alone
	// does not surface unbound, defaultless keys to Unmarshal.
	viper.BindEnv("admin_ids")
	viper.BindEnv("catalog_file")
	viper.BindEnv("keep_alive_url")

	viper.AutomaticEnv()
}
