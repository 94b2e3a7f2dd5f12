package multiposs

import (
	"context"
	"fmt"
	"multiposs/lib/memo"
	"multiposs/lib/restyutil"
	"multiposs/lib/telemetry"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseUrl = "https://duwo.multiposs.nl/"

const (
	loginPath  = "/login/submit.php"
	mainPath   = "/main.php"
	qrCodePath = "/GenUserQrcode.php"

	usernameField = "UserInput"
	passwordField = "PwdInput"
)

// Client is a logged in view of a single multiposs account. Login status,
// balance and QR id are each fetched once and then served from memory.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string

	loggedIn memo.Cell[bool]
	balance  memo.Cell[Balance]
	qrId     memo.Cell[string]
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl  string
	Username string
	Password string
	// defaults to 30 seconds
	Timeout time.Duration
	// wraps the transport so requests look like they come from a browser
	CloudflareBypass bool
	// if set, every request and response is written here while debug
	// logging is enabled
	InstrumentOutput restyutil.InstrumentOutput
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	_, span := tracer.Start(ctx, "NewClient")
	defer span.End()

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	span.SetAttributes(attribute.String("base_url", opts.BaseUrl))

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse base url")
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		span.SetStatus(codes.Error, "base url is not absolute")
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to create cookie jar")
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		resty.DomainCheckRedirectPolicy(baseUrl.Hostname()),
	)
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "multiposs.lib.multiposs.http", passwordField)
	restyutil.InstrumentClient(client, opts.InstrumentOutput, func(body string) string {
		return telemetry.RedactForm(body, passwordField)
	})

	c := &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

// Username returns the account the client logs in as.
func (c *Client) Username() string {
	return c.username
}

// Invalidate forgets the login status, balance and QR id, the next call to
// any of them goes back to the portal.
func (c *Client) Invalidate() {
	c.loggedIn.Invalidate()
	c.balance.Invalidate()
	c.qrId.Invalidate()
}

// fetch gets a page through the session and returns its body, a non-2xx
// response is an error.
func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: unexpected status %s", endpoint, res.Status())
	}
	return res.Body(), nil
}
