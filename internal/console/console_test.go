package console

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/storefront/internal/apperrors"
	"github.com/nkiryanov/storefront/internal/flow"
	"github.com/nkiryanov/storefront/internal/models"
	"github.com/nkiryanov/storefront/internal/repository/memory"
	"github.com/nkiryanov/storefront/internal/service/authclient"
	"github.com/nkiryanov/storefront/internal/testutil"
)

func newClient(t *testing.T, backend *testutil.Backend) *authclient.Client {
	t.Helper()

	tokens := memory.New()
	require.NoError(t, tokens.Set(t.Context(), models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}))
	client, err := authclient.New(authclient.Config{BaseURL: backend.URL}, tokens, nil)
	require.NoError(t, err)
	return client
}

func decodePages(t *testing.T, out *bytes.Buffer) []Page {
	t.Helper()

	var pages []Page
	dec := json.NewDecoder(out)
	for {
		var p Page
		err := dec.Decode(&p)
		if err == io.EOF {
			return pages
		}
		require.NoError(t, err)
		pages = append(pages, p)
	}
}

func TestNewRenderer(t *testing.T) {
	_, err := NewRenderer(io.Discard, "yaml")
	require.Error(t, err)

	r, err := NewRenderer(io.Discard, "")
	require.NoError(t, err)
	require.Equal(t, FormatText, r.format)
}

func TestRenderer_Text(t *testing.T) {
	var out bytes.Buffer
	r, err := NewRenderer(&out, FormatText)
	require.NoError(t, err)

	err = r.Render(Page{Name: "forgot-password", State: "form_ready", Lines: []string{"hello"}, Error: "Please enter your email address"})

	require.NoError(t, err)
	require.Equal(t, "[forgot-password] form_ready\n  hello\n  error: Please enter your email address\n", out.String())
}

func TestRunForgotPassword(t *testing.T) {
	backend := testutil.StartBackend(t)
	backend.On("POST /auth/forgot-password", http.StatusOK, map[string]string{"message": "sent"})

	var out bytes.Buffer
	r, err := NewRenderer(&out, FormatJSON)
	require.NoError(t, err)
	prompter := NewPrompter(strings.NewReader("\n  User@Example.com \n"), io.Discard)
	f := flow.NewForgotPasswordFlow(newClient(t, backend), nil)

	err = RunForgotPassword(t.Context(), f, prompter, r)

	require.NoError(t, err)
	pages := decodePages(t, &out)
	require.Len(t, pages, 3)
	require.Equal(t, flow.MessageEmailRequired, pages[1].Error, "empty email asked again")
	require.Equal(t, string(flow.ForgotEmailSent), pages[2].State)
	require.Equal(t, []string{
		"We've sent a password reset link to User@Example.com.",
		"The link will expire in 1 hour.",
	}, pages[2].Lines)

	reqs := backend.Requests("POST /auth/forgot-password")
	require.Len(t, reqs, 1)
	require.Equal(t, "user@example.com", reqs[0].Body["email"])
}

func TestRunForgotPassword_InputEnds(t *testing.T) {
	backend := testutil.StartBackend(t)
	backend.On("POST /auth/forgot-password", http.StatusNotFound, map[string]string{"error": "User not found"})

	r, err := NewRenderer(io.Discard, FormatText)
	require.NoError(t, err)
	f := flow.NewForgotPasswordFlow(newClient(t, backend), nil)

	err = RunForgotPassword(t.Context(), f, NewPrompter(strings.NewReader("a@b.c\n"), io.Discard), r)

	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "User not found", f.View().Error)
}

func TestRunResetPassword(t *testing.T) {
	t.Run("success then redirect", func(t *testing.T) {
		backend := testutil.StartBackend(t)
		backend.On("POST /auth/verify-reset-token", http.StatusOK, map[string]string{"email": "u@x.com"})
		backend.On("POST /auth/reset-password", http.StatusOK, map[string]string{"message": "ok"})

		var out bytes.Buffer
		r, err := NewRenderer(&out, FormatJSON)
		require.NoError(t, err)
		nav := NewNavigator(r, "http://localhost:3000")
		clock := &heldClock{}
		f := flow.NewResetPasswordFlow("abc123", newClient(t, backend), nav, clock, nil)
		t.Cleanup(f.Close)
		input := "short\nshort\nlongenough1\nlongenough1\n"

		err = RunResetPassword(t.Context(), f, NewPrompter(strings.NewReader(input), io.Discard), r)
		require.NoError(t, err)
		clock.fire()

		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		route, err := nav.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, flow.RouteSignIn, route)

		pages := decodePages(t, &out)
		require.Equal(t, []string{"Resetting password for u@x.com"}, pages[1].Lines)
		require.Equal(t, flow.MessagePasswordTooShort, pages[2].Error)
		require.Equal(t, string(flow.ResetSuccess), pages[3].State)
		require.Equal(t, PageRedirect, pages[4].Name)
		require.Equal(t, []string{"http://localhost:3000/auth"}, pages[4].Lines)
		require.Len(t, backend.Requests("POST /auth/reset-password"), 1)
	})

	t.Run("invalid token", func(t *testing.T) {
		backend := testutil.StartBackend(t)
		backend.On("POST /auth/verify-reset-token", http.StatusBadRequest, map[string]string{"error": "Invalid or expired reset link"})

		var out bytes.Buffer
		r, err := NewRenderer(&out, FormatJSON)
		require.NoError(t, err)
		f := flow.NewResetPasswordFlow("abc123", newClient(t, backend), NewNavigator(r, ""), &heldClock{}, nil)

		err = RunResetPassword(t.Context(), f, NewPrompter(strings.NewReader("longenough1\nlongenough1\n"), io.Discard), r)

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
		pages := decodePages(t, &out)
		require.Len(t, pages, 2, "no password prompt for invalid token")
		require.Equal(t, "Invalid or expired reset link", pages[1].Error)
		require.Empty(t, backend.Requests("POST /auth/reset-password"))
	})
}

func TestRunAdmin(t *testing.T) {
	admin := sessionStub{models.User{ID: "6f1c", FullName: "Root Admin", Email: "root@x.com", Role: models.RoleAdmin}}

	t.Run("granted", func(t *testing.T) {
		backend := testutil.StartBackend(t)
		backend.On("GET /auth/admin/verify", http.StatusOK, map[string]string{"message": "ok"})

		var out bytes.Buffer
		r, err := NewRenderer(&out, FormatJSON)
		require.NoError(t, err)
		f := flow.NewRoleGateFlow(models.RoleAdmin, admin, newClient(t, backend), NewNavigator(r, ""), nil)

		err = RunAdmin(t.Context(), f, r)

		require.NoError(t, err)
		pages := decodePages(t, &out)
		require.Len(t, pages, 2)
		require.True(t, pages[0].Busy)
		require.Equal(t, []string{
			AdminDashboardTitle,
			flow.MessageBackendVerified,
			"Your Admin Profile",
			"  Name: Root Admin",
			"  Email: root@x.com",
			"  Role: ADMIN",
			AdminFeaturesNote,
		}, pages[1].Lines)
	})

	t.Run("denied shows nothing", func(t *testing.T) {
		backend := testutil.StartBackend(t)
		backend.On("GET /auth/admin/verify", http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})

		var out bytes.Buffer
		r, err := NewRenderer(&out, FormatJSON)
		require.NoError(t, err)
		nav := NewNavigator(r, "")
		f := flow.NewRoleGateFlow(models.RoleAdmin, admin, newClient(t, backend), nav, nil)

		err = RunAdmin(t.Context(), f, r)

		require.ErrorIs(t, err, apperrors.ErrRoleDenied)
		route, err := nav.Wait(t.Context())
		require.NoError(t, err)
		require.Equal(t, flow.RouteLanding, route)
		for _, p := range decodePages(t, &out) {
			require.NotContains(t, p.Lines, flow.MessageBackendVerified)
			require.NotContains(t, p.Lines, "  Email: root@x.com", "profile stays hidden")
		}
	})
}

type sessionStub struct {
	user models.User
}

func (s sessionStub) User() (models.User, bool) { return s.user, true }

// heldClock keeps scheduled funcs until fire is called
type heldClock struct {
	mu    sync.Mutex
	funcs []func()
}

func (c *heldClock) AfterFunc(_ time.Duration, f func()) flow.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, f)
	return time.NewTimer(time.Hour)
}

func (c *heldClock) fire() {
	c.mu.Lock()
	funcs := c.funcs
	c.funcs = nil
	c.mu.Unlock()

	for _, f := range funcs {
		go f()
	}
}
