package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/corray333/coffeeshop/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "COFFEE"

// MustInit loads secrets from .env and settings from config.yaml, then installs
// the default logger. A missing .env is fine when the environment is already set.
// Any setting can be overridden from the environment: server.http.port is read
// from COFFEE_SERVER_HTTP_PORT.
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if dir := os.Getenv(envPrefix + "_CONFIG_DIR"); dir != "" {
		viper.AddConfigPath(dir)
	}
	viper.AddConfigPath("/etc/coffeeshop")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	SetupLogger()
}

func SetupLogger() {
	slog.SetDefault(slog.New(logger.NewHandler(nil)))
}
