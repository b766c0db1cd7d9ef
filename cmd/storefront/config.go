package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/storefront/internal/console"
	"github.com/nkiryanov/storefront/internal/logger"
)

// Session backends
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const (
	defaultAPIURL          = "http://localhost:5000/api"
	defaultStorefrontURL   = "http://localhost:3000"
	defaultSessionBackend  = BackendFile
	defaultProfile         = "default"
	defaultCallbackAddr    = "127.0.0.1:8089"
	defaultCallbackTimeout = 5 * time.Minute
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultOutput          = console.FormatText
	defaultVerifyAttempts  = 1
)

type Config struct {
	// Backend authority base URL, paths like '/auth/forgot-password' are appended
	APIURL string `validate:"required,url"`

	// Storefront web address. Callback redirects the browser there
	StorefrontURL string `validate:"required,url"`

	// Where session tokens are kept
	SessionBackend string `validate:"oneof=file memory redis postgres"`

	// Directory with per profile session files
	ProfileDir string `validate:"required_if=SessionBackend file"`

	// Profile separates sessions of different users on one machine
	Profile string `validate:"required,excludesall=/\\"`

	// Session lifetime in redis. Zero keeps it until logout
	SessionTTL time.Duration `validate:"min=0"`

	RedisURL string `validate:"required_if=SessionBackend redis"`

	// Database to keep sessions in
	DatabaseDSN string `validate:"required_if=SessionBackend postgres"`

	// Loopback address the OAuth callback listener binds to
	CallbackAddr string `validate:"required,hostname_port"`

	// How long login waits for the callback
	CallbackTimeout time.Duration `validate:"gt=0"`

	// Provider sign in page. Printed with 'redirect_uri' pointing to callback listener
	OAuthURL string `validate:"omitempty,url"`

	// Total admin verification attempts when backend is unreachable
	AdminVerifyAttempts int `validate:"min=1,max=10"`

	LogLevel    string `validate:"oneof=debug info warn error"`
	Environment string `validate:"oneof=dev prod"`

	// Page output format
	Output string `validate:"oneof=text json"`
}

func NewConfig() *Config {
	return &Config{
		APIURL:              defaultAPIURL,
		StorefrontURL:       defaultStorefrontURL,
		SessionBackend:      defaultSessionBackend,
		ProfileDir:          defaultProfileDir(),
		Profile:             defaultProfile,
		CallbackAddr:        defaultCallbackAddr,
		CallbackTimeout:     defaultCallbackTimeout,
		AdminVerifyAttempts: defaultVerifyAttempts,
		LogLevel:            defaultLoggingLevel,
		Environment:         defaultEnvironment,
		Output:              defaultOutput,
	}
}

func defaultProfileDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront"
	}
	return filepath.Join(dir, "storefront")
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"STOREFRONT_API_URL":    setString(&c.APIURL),
		"STOREFRONT_URL":        setString(&c.StorefrontURL),
		"SESSION_BACKEND":       setString(&c.SessionBackend),
		"PROFILE_DIR":           setString(&c.ProfileDir),
		"PROFILE":               setString(&c.Profile),
		"SESSION_TTL":           setDuration(&c.SessionTTL),
		"REDIS_URL":             setString(&c.RedisURL),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"CALLBACK_ADDRESS":      setString(&c.CallbackAddr),
		"CALLBACK_TIMEOUT":      setDuration(&c.CallbackTimeout),
		"OAUTH_URL":             setString(&c.OAuthURL),
		"ADMIN_VERIFY_ATTEMPTS": setInt(&c.AdminVerifyAttempts),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
		"OUTPUT":                setString(&c.Output),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

// ParseFlags parses global flags and returns what follows them: the command and its arguments
func (c *Config) ParseFlags(args []string) ([]string, error) {
	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	fs.SetInterspersed(false)

	fs.StringVarP(&c.APIURL, "api-url", "a", c.APIURL, "Backend API base URL")
	fs.StringVarP(&c.StorefrontURL, "storefront-url", "u", c.StorefrontURL, "Storefront web URL")
	fs.StringVarP(&c.SessionBackend, "session-backend", "b", c.SessionBackend, "Session storage (file, memory, redis, postgres)")
	fs.StringVar(&c.ProfileDir, "profile-dir", c.ProfileDir, "Directory for session files")
	fs.StringVarP(&c.Profile, "profile", "p", c.Profile, "Session profile name")
	fs.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "Session lifetime in redis (0 keeps until logout)")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.CallbackAddr, "callback-address", "c", c.CallbackAddr, "OAuth callback listen address")
	fs.DurationVar(&c.CallbackTimeout, "callback-timeout", c.CallbackTimeout, "How long to wait for OAuth callback")
	fs.StringVar(&c.OAuthURL, "oauth-url", c.OAuthURL, "Provider sign in URL")
	fs.IntVar(&c.AdminVerifyAttempts, "admin-verify-attempts", c.AdminVerifyAttempts, "Admin verification attempts on network failures")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report options by their flag names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.ToLower(fld.Name)
	})
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
