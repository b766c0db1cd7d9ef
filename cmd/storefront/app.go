package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/console"
	"github.com/nkiryanov/storefront/internal/db"
	"github.com/nkiryanov/storefront/internal/flow"
	"github.com/nkiryanov/storefront/internal/handlers"
	"github.com/nkiryanov/storefront/internal/logger"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository"
	"github.com/nkiryanov/storefront/internal/repository/filestore"
	"github.com/nkiryanov/storefront/internal/repository/memory"
	"github.com/nkiryanov/storefront/internal/repository/postgres"
	"github.com/nkiryanov/storefront/internal/repository/redis"
	"github.com/nkiryanov/storefront/internal/service/authclient"
	"github.com/nkiryanov/storefront/internal/service/session"
)

const usage = `usage: storefront [flags] <command> [command flags]

commands:
  forgot-password          request a password reset link
  reset-password           set a new password using a reset link token
  login                    sign in with the OAuth provider
  whoami                   show current user
  admin                    open the admin page
  logout                   forget the session
`

// Extra time after the success redirect delay before giving up waiting for it
const redirectGrace = time.Second

type App struct {
	config *Config
	logger logger.Logger

	tokens  repository.TokenStore
	client  *authclient.Client
	session *session.Service

	renderer  *console.Renderer
	prompter  *console.Prompter
	navigator *console.Navigator

	closers []func()
}

func NewApp(ctx context.Context, c *Config, stdin io.Reader, stdout io.Writer, stderr io.Writer) (*App, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	renderer, err := console.NewRenderer(stdout, c.Output)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:    c,
		logger:    l,
		renderer:  renderer,
		prompter:  console.NewPrompter(stdin, stderr),
		navigator: console.NewNavigator(renderer, c.StorefrontURL),
	}

	app.tokens, err = app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while opening session store: %w", err)
	}

	app.client, err = authclient.New(authclient.Config{BaseURL: c.APIURL}, app.tokens, l)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating auth client: %w", err)
	}

	app.session, err = session.NewService(app.tokens, app.client, l)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error while creating session service: %w", err)
	}

	return app, nil
}

func (a *App) openStore(ctx context.Context) (repository.TokenStore, error) {
	c := a.config

	switch c.SessionBackend {
	case BackendMemory:
		return memory.New(), nil
	case BackendFile:
		return filestore.New(c.ProfileDir, c.Profile)
	case BackendRedis:
		client, err := redis.Connect(ctx, c.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return redis.New(client, c.Profile, c.SessionTTL)
	case BackendPostgres:
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		return postgres.NewSessionStore(pool, c.Profile)
	default:
		return nil, fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
}

// Close releases store connections
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	command, args := args[0], args[1:]
	a.logger.Debug("Running command", "command", command, "profile", a.config.Profile)

	switch command {
	case "forgot-password":
		return a.forgotPassword(ctx)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "login":
		return a.login(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "admin":
		return a.admin(ctx)
	case "logout":
		return a.logout(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func (a *App) forgotPassword(ctx context.Context) error {
	f := flow.NewForgotPasswordFlow(a.client, a.logger)
	defer f.Close()

	return console.RunForgotPassword(ctx, f, a.prompter, a.renderer)
}

func (a *App) resetPassword(ctx context.Context, args []string) error {
	var token string
	fs := pflag.NewFlagSet("reset-password", pflag.ContinueOnError)
	fs.StringVarP(&token, "token", "t", "", "Reset token or the whole reset link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if token == "" && fs.NArg() > 0 {
		token = fs.Arg(0)
	}

	f := flow.NewResetPasswordFlow(tokenFromLink(token), a.client, a.navigator, flow.RealClock, a.logger)
	defer f.Close()

	if err := console.RunResetPassword(ctx, f, a.prompter, a.renderer); err != nil {
		return err
	}

	// Stay until the flow sends user to sign in
	waitCtx, cancel := context.WithTimeout(ctx, flow.SuccessRedirectDelay+redirectGrace)
	defer cancel()
	_, err := a.navigator.Wait(waitCtx)
	return err
}

// tokenFromLink accepts both raw token and reset link with 'token' query parameter
func tokenFromLink(value string) string {
	u, err := url.Parse(value)
	if err != nil || u.RawQuery == "" {
		return value
	}
	if token := u.Query().Get("token"); token != "" {
		return token
	}
	return value
}

func (a *App) login(ctx context.Context) error {
	callback := handlers.NewCallback(a.config.StorefrontURL, a.tokens, a.session, a.logger)
	srv, err := handlers.ListenCallback(a.config.CallbackAddr, callback, a.logger)
	if err != nil {
		return err
	}

	lines := []string{"Sign in with the provider. The backend must redirect to " + srv.URL()}
	if a.config.OAuthURL != "" {
		lines = append(lines, "Open "+oauthURL(a.config.OAuthURL, srv.URL()))
	}
	if err := a.renderer.Render(console.Page{Name: "login", State: string(flow.CallbackPending), Lines: lines, Busy: true}); err != nil {
		return err
	}

	result, err := srv.Wait(ctx, a.config.CallbackTimeout)
	if err != nil {
		return err
	}

	page := console.Page{Name: "login", State: string(result.State), Lines: []string{result.Message()}}
	if user, ok := a.session.User(); ok {
		page.Lines = append(page.Lines, userLines(user)...)
	}
	if err := a.renderer.Render(page); err != nil {
		return err
	}

	return result.Err
}

func oauthURL(base string, redirect string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("redirect_uri", redirect)
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *App) whoami(ctx context.Context) error {
	user, err := a.session.Bootstrap(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoSession) || errors.Is(err, apperrors.ErrUnauthorized) {
			return a.renderer.Render(console.Page{Name: "whoami", State: "signed_out"})
		}
		return err
	}

	return a.renderer.Render(console.Page{Name: "whoami", State: "signed_in", Lines: userLines(user)})
}

func userLines(user models.User) []string {
	return []string{
		"Name: " + user.FullName,
		"Email: " + user.Email,
		"Role: " + user.Role,
	}
}

func (a *App) admin(ctx context.Context) error {
	// Local claim comes from the cached user. Without it the gate denies on its own
	if _, err := a.session.Bootstrap(ctx); err != nil {
		a.logger.Info("Session bootstrap failed", "error", err)
	}

	f := flow.NewRoleGateFlow(models.RoleAdmin, a.session, a.client, a.navigator, a.logger,
		flow.WithAttempts(a.config.AdminVerifyAttempts),
	)
	defer f.Close()

	return console.RunAdmin(ctx, f, a.renderer)
}

func (a *App) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	return a.renderer.Render(console.Page{Name: "logout", State: "signed_out"})
}
