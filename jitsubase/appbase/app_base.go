package appbase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Context[C any] interface {
	InitContext(settings *AppSettings) error
	// Run executes the command. ctx is cancelled on SIGINT/SIGTERM.
	Run(ctx context.Context) error
	Cleanup() error
	Config() *C
	// Server returns optional status server. May be nil.
	Server() *http.Server
}

type Config struct {
	AppSetting *AppSettings

	// HTTPPort port for optional status server. 0 disables it.
	HTTPPort int `mapstructure:"HTTP_PORT" default:"0" validate:"gte=0,lte=65535"`

	// # LOGGING

	// LogFormat log format. Can be `text` or `json`. Default: `text`
	LogFormat string `mapstructure:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	LogLevel  string `mapstructure:"LOG_LEVEL" default:"info"`
	// LogFile if set, logs are also written to rotated file in LogDir
	LogFile       string `mapstructure:"LOG_FILE"`
	LogDir        string `mapstructure:"LOG_DIR" default:"logs"`
	LogMaxSizeMb  int    `mapstructure:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS" default:"5"`

	logCloser io.Closer
}

func (c *Config) PostInit(settings *AppSettings) error {
	c.AppSetting = settings
	if c.LogFormat == "json" {
		logging.SetJsonFormatter()
	}
	var fileConfig *logging.Config
	if c.LogFile != "" {
		fileConfig = &logging.Config{
			FileName:   c.LogFile,
			FileDir:    c.LogDir,
			MaxSizeMb:  c.LogMaxSizeMb,
			MaxBackups: c.LogMaxBackups,
			Compress:   true,
		}
	}
	closer, err := logging.InitGlobalLogger(c.LogLevel, fileConfig)
	if err != nil {
		return fmt.Errorf("error initializing logger: %v", err)
	}
	c.logCloser = closer
	return nil
}

// Close flushes log file writer if any
func (c *Config) Close() error {
	if c.logCloser != nil {
		return c.logCloser.Close()
	}
	return nil
}

type InstanceConfig interface {
	PostInit(settings *AppSettings) error
}

func initViperVariables[C InstanceConfig](v *viper.Viper, appConfig C) {
	elem := reflect.ValueOf(appConfig).Elem()
	tp := elem.Type()
	fieldsCount := tp.NumField()
	for i := 0; i < fieldsCount; i++ {
		field := tp.Field(i)
		modelType := reflect.TypeOf((*InstanceConfig)(nil)).Elem()
		if reflect.PointerTo(field.Type).Implements(modelType) {
			initViperVariables(v, elem.Field(i).Addr().Interface().(InstanceConfig))
		} else if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			logging.Fatalf("Application config has incorrect struct field '%s': all structs nested in config must implement interface 'InstanceConfig'", field.Name)
		}
		variable := field.Tag.Get("mapstructure")
		if variable != "" && !strings.HasPrefix(variable, ",") {
			defaultValue := field.Tag.Get("default")
			if defaultValue != "" {
				v.SetDefault(variable, defaultValue)
			} else {
				_ = v.BindEnv(variable)
			}
		}
	}
}

// FlagKey converts command line flag name to config variable name: skip-delete -> SKIP_DELETE
func FlagKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// InitAppConfig loads config with the following precedence: command line flags, env variables (with EnvPrefix),
// <ConfigName>.<ConfigType> file in ConfigPath, .env file in ConfigPath, `default` tags.
func InitAppConfig[C InstanceConfig](appConfig C, settings *AppSettings) error {
	configPath := settings.ConfigPath
	if configPath == "" {
		configPath = "."
	}
	if err := godotenv.Load(path.Join(configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("❗error reading .env file: %s", err)
	}
	v := viper.New()
	initViperVariables(v, appConfig)
	if settings.Flags != nil {
		if !settings.Flags.Parsed() {
			if err := settings.Flags.Parse(settings.Args); err != nil {
				return err
			}
		}
		var bindErr error
		settings.Flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(FlagKey(f.Name), f); err != nil {
				bindErr = multierror.Append(bindErr, err)
			}
		})
		if bindErr != nil {
			return fmt.Errorf("❗error binding flags: %s", bindErr)
		}
	}
	v.SetConfigFile(path.Join(configPath, fmt.Sprintf("%s.%s", settings.ConfigName, settings.ConfigType)))
	v.SetConfigType(settings.ConfigType)
	v.SetEnvPrefix(settings.EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		//it is ok to not have config file
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("❗error reading config file: %s", err)
		}
	}
	if err := v.Unmarshal(appConfig); err != nil {
		return fmt.Errorf("❗error unmarshalling config: %s", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(appConfig); err != nil {
		return fmt.Errorf("❗invalid config: %s", err)
	}
	if err := appConfig.PostInit(settings); err != nil {
		return fmt.Errorf("❗error initializing config: %s", err)
	}
	return nil
}

type AppSettings struct {
	Name, ConfigPath, ConfigName, ConfigType, EnvPrefix string
	// Flags command line flags bound to config variables by FlagKey
	Flags *pflag.FlagSet
	// Args command line arguments to parse Flags from. Usually os.Args[1:]
	Args []string
}

func (a *AppSettings) EnvPrefixWithUnderscore() string {
	if a.EnvPrefix == "" {
		return ""
	}
	return a.EnvPrefix + "_"
}

// PositionalArgs returns arguments left after flags parsing
func (a *AppSettings) PositionalArgs() []string {
	if a.Flags == nil {
		return a.Args
	}
	return a.Flags.Args()
}

type App[C any] struct {
	appContext Context[C]
	settings   *AppSettings
}

func NewApp[C any](appContext Context[C], appSettings *AppSettings) (*App[C], error) {
	logging.SetTextFormatter()
	if err := appContext.InitContext(appSettings); err != nil {
		return nil, fmt.Errorf("failed to start %s: %v", appSettings.Name, err)
	}
	return &App[C]{
		appContext: appContext,
		settings:   appSettings,
	}, nil
}

// Run runs the command until it finishes or an interrupt signal arrives. Returns process exit code.
func (a *App[C]) Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := a.appContext.Server()
	if server != nil {
		go func() {
			logging.Infof("Starting status server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Errorf("status server error: %v", err)
			}
		}()
	}
	runErr := a.appContext.Run(ctx)
	interrupted := ctx.Err() != nil
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}
	if err := a.appContext.Cleanup(); err != nil {
		logging.Errorf("error during cleanup: %s", err)
	}
	switch {
	case interrupted:
		logging.Warnf("[%s] Interrupted. Progress is saved.", a.settings.Name)
		return 130
	case runErr != nil:
		logging.Errorf("[%s] %v", a.settings.Name, runErr)
		return 1
	}
	return 0
}
