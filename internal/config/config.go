package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/varoOP/anidbkit/internal/domain"
)

const (
	EnvPrefix  = "ANIDBKIT"
	ConfigName = "anidbkit"
)

// LoadDotEnv exports the variables of an optional .env file. Variables already present in the
// environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return errors.Wrapf(err, "failed to load %s", path)
	}

	return nil
}

// Setup registers defaults and the environment binding on v and reads the config file. With an
// empty cfgFile, anidbkit.{yaml,toml,...} is searched in the working directory and $HOME; a
// missing file is not an error.
func Setup(v *viper.Viper, cfgFile string) error {
	SetDefaults(v, domain.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(ConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}

	return nil
}

// SetDefaults registers every key of def so that Unmarshal sees environment overrides for keys
// absent from the config file.
func SetDefaults(v *viper.Viper, def domain.Config) {
	v.SetDefault("client", def.Client)
	v.SetDefault("client_version", def.ClientVersion)
	v.SetDefault("protocol_version", def.ProtocolVersion)
	v.SetDefault("domain", def.Domain)
	v.SetDefault("download_url", def.DownloadURL)
	v.SetDefault("cache_path", def.CachePath)
	v.SetDefault("download_path", def.DownloadPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("rate_limit.max_requests", def.RateLimit.MaxRequests)
	v.SetDefault("rate_limit.window", def.RateLimit.Window)
	v.SetDefault("rate_limit.retention", def.RateLimit.Retention)
	v.SetDefault("cache.ttl", def.Cache.TTL)
	v.SetDefault("cache.delete_on_expire", def.Cache.DeleteOnExpire)
	v.SetDefault("catalog.refresh_interval", def.Catalog.RefreshInterval)
	v.SetDefault("store.backend", string(def.Store.Backend))
}

// Load builds the validated configuration from v. Setup must have been called on v.
func Load(v *viper.Viper) (*domain.Config, error) {
	cfg := &domain.Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidConfig, "%v", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cfg and reports every failing field in a single error matching
// domain.ErrInvalidConfig.
func Validate(cfg *domain.Config) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "failed to validate config")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}

	return errors.Wrap(domain.ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required (set " + envName(field) + ")"
	case "oneof":
		return field + " must be one of [" + fe.Param() + "], got " + valueString(fe)
	case "url":
		return field + " must be a URL, got " + valueString(fe)
	default:
		return field + " failed " + fe.Tag() + "=" + fe.Param() + ", got " + valueString(fe)
	}
}

func envName(field string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}

func valueString(fe validator.FieldError) string {
	if reflect.ValueOf(fe.Value()).Kind() == reflect.String {
		return fmt.Sprintf("%q", fe.Value())
	}
	return fmt.Sprintf("%v", fe.Value())
}
