package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	BackendConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	PromotionConfig struct {
		Debounce  time.Duration
		NoticeTTL time.Duration
	}

	ServerConfig struct {
		Address            string
		Host               string
		SecretKey          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	Config struct {
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		Env          string
		Operator     string
		RollbarToken string
		WorkDir      string

		Backend   BackendConfig
		Promotion PromotionConfig
		Server    ServerConfig
	}
)

func newViper(env string) *viper.Viper {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Masomo Console")
	conf.SetDefault("build", "dev")
	conf.SetDefault("operator", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("backend.baseURL", "http://localhost:8080")
	conf.SetDefault("backend.token", "")
	conf.SetDefault("backend.timeout", 10*time.Second)
	conf.SetDefault("promotion.debounce", 300*time.Millisecond)
	conf.SetDefault("promotion.noticeTTL", 5*time.Second)
	conf.SetDefault("server.address", ":8080")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}

	// DEV_BACKEND_BASEURL, PROD_SERVER_SECRETKEY, ...
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()
	return conf
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// An optional config file is merged over the defaults; environment variables win over both.
func NewConfig(file ...string) (*Config, error) {
	env := strings.ToUpper(CleanString(os.Getenv("ENV"))) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting working directory")
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	v := newViper(env)
	if len(file) > 0 && file[0] != "" {
		v.SetConfigFile(file[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", file[0])
		}
	}

	return &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		Operator:     v.GetString("operator"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      wd,
		Backend: BackendConfig{
			BaseURL: v.GetString("backend.baseURL"),
			Token:   v.GetString("backend.token"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		Promotion: PromotionConfig{
			Debounce:  v.GetDuration("promotion.debounce"),
			NoticeTTL: v.GetDuration("promotion.noticeTTL"),
		},
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			SecretKey:          v.GetString("server.secretKey"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		},
	}, nil
}
