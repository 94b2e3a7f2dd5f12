package multiposs

import (
	"context"
	"multiposs/lib/htmlutil"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const balanceElementId = "LblUserCredits"

// Balance is the credit count shown on the account pages.
//
// Text that does not start with a number still produces a Balance, with
// Valid set to false, rather than an error.
type Balance struct {
	Credits int64
	Valid   bool
	// the element text with surrounding whitespace removed
	Raw string
}

func (b Balance) String() string {
	if !b.Valid {
		return "NaN"
	}
	return strconv.FormatInt(b.Credits, 10)
}

var leadingInteger = regexp.MustCompile(`^[+-]?[0-9]+`)

// ParseBalance reads a balance from the text of the credits element:
// whitespace is trimmed, thousands separators are dropped and the leading
// base-10 integer is used.
func ParseBalance(text string) Balance {
	raw := strings.TrimSpace(text)
	digits := leadingInteger.FindString(strings.ReplaceAll(raw, ",", ""))
	credits, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Balance{Raw: raw}
	}
	return Balance{Credits: credits, Valid: true, Raw: raw}
}

func extractBalance(ctx context.Context, body []byte) (Balance, error) {
	text, err := htmlutil.ElementText(ctx, body, balanceElementId)
	if err != nil {
		return Balance{}, err
	}
	return ParseBalance(text), nil
}

// Balance returns the cached balance, fetching it if there is none yet.
// The balance may already have been filled in by the page shown right
// after login.
func (c *Client) Balance(ctx context.Context) (Balance, error) {
	return c.balance.Get(ctx, c.fetchBalance)
}

// CachedBalance returns the balance without going to the portal.
func (c *Client) CachedBalance() (Balance, bool) {
	return c.balance.Peek()
}

// RefreshBalance always fetches the main page and stores the balance
// found on it.
func (c *Client) RefreshBalance(ctx context.Context) (Balance, error) {
	balance, err := c.fetchBalance(ctx)
	if err != nil {
		return Balance{}, err
	}
	c.balance.Set(balance)
	return balance, nil
}

func (c *Client) fetchBalance(ctx context.Context) (Balance, error) {
	ctx, span := tracer.Start(ctx, "client:fetchBalance")
	defer span.End()

	_, err := c.LoggedIn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not logged in")
		return Balance{}, err
	}

	body, err := c.fetch(ctx, mainPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch main page")
		return Balance{}, err
	}

	balance, err := extractBalance(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse main page")
		return Balance{}, err
	}
	span.SetAttributes(
		attribute.Int64("credits", balance.Credits),
		attribute.Bool("valid", balance.Valid),
	)
	return balance, nil
}
