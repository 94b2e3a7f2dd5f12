package multiposs

import (
	"context"
	"fmt"
	"log/slog"
	"multiposs/lib/htmlutil"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LoginMarkerNotFound means the login response had no session redirect,
// which happens with wrong credentials, a changed page or an error page.
var LoginMarkerNotFound = fmt.Errorf("could not find start session url")

var sessionUrlMarker = htmlutil.NewLineMarker(
	"session url",
	`(?im)^`+htmlutil.Space+`*document\.location = '(.+)';`+htmlutil.Space+`*$`,
)

// LoggedIn logs in on the first call, every later or concurrent call gets
// the same result. A failed login stays failed until RefreshLogin or
// Invalidate is called.
func (c *Client) LoggedIn(ctx context.Context) (bool, error) {
	return c.loggedIn.Get(ctx, c.login)
}

// RefreshLogin throws away the cached login result and logs in again.
func (c *Client) RefreshLogin(ctx context.Context) (bool, error) {
	c.loggedIn.Invalidate()
	return c.LoggedIn(ctx)
}

func (c *Client) loginUrl() *url.URL {
	return c.BaseUrl.JoinPath(loginPath)
}

func resolveSessionUrl(ctx context.Context, loginUrl *url.URL, body string) (*url.URL, error) {
	target, err := sessionUrlMarker.Find(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", LoginMarkerNotFound, err)
	}
	return loginUrl.Parse(target)
}

func (c *Client) login(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	balanceGeneration := c.balance.Generation()
	loginUrl := c.loginUrl()
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			usernameField: c.username,
			passwordField: c.password,
		}).
		Post(loginUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post login form")
		return false, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "login form rejected")
		return false, fmt.Errorf("POST %s: unexpected status %s", loginPath, res.Status())
	}

	sessionUrl, err := resolveSessionUrl(ctx, loginUrl, res.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find session url")
		return false, err
	}
	span.SetAttributes(attribute.String("session_url", sessionUrl.Redacted()))

	landing, err := c.fetch(ctx, sessionUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open session")
		return false, err
	}

	go c.primeBalance(context.WithoutCancel(ctx), balanceGeneration, landing)

	slog.DebugContext(ctx, "logged in", "username", c.username)
	return true, nil
}

// primeBalance fills the balance cache from a page that was fetched
// anyway. Errors are logged and dropped. Nothing is stored if the balance
// was invalidated after generation was read.
func (c *Client) primeBalance(ctx context.Context, generation uint64, body []byte) {
	balance, err := extractBalance(ctx, body)
	if err != nil {
		slog.WarnContext(ctx, "failed to read balance from landing page", "err", err)
		return
	}
	if balance.Raw == "" {
		slog.DebugContext(ctx, "landing page has no balance")
		return
	}
	if !c.balance.SetAt(generation, balance) {
		slog.DebugContext(ctx, "balance was invalidated during login")
	}
}
