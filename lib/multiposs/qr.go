package multiposs

import (
	"context"
	"fmt"
	"multiposs/lib/htmlutil"

	"go.opentelemetry.io/otel/codes"
)

var QrIdNotFound = fmt.Errorf("could not find qr id")

// the endpoint answers with a script that embeds json-like fragments, so
// the id is matched by line instead of decoded
var qrIdMarker = htmlutil.NewLineMarker(
	"qr id",
	`(?im)^`+htmlutil.Space+`*"text": "(.+)"`+htmlutil.Space+`*$`,
)

func (c *Client) QrId(ctx context.Context) (string, error) {
	return c.qrId.Get(ctx, c.fetchQrId)
}

func (c *Client) CachedQrId() (string, bool) {
	return c.qrId.Peek()
}

func (c *Client) RefreshQrId(ctx context.Context) (string, error) {
	id, err := c.fetchQrId(ctx)
	if err != nil {
		return "", err
	}
	c.qrId.Set(id)
	return id, nil
}

func extractQrId(ctx context.Context, body string) (string, error) {
	id, err := qrIdMarker.Find(ctx, body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", QrIdNotFound, err)
	}
	return id, nil
}

func (c *Client) fetchQrId(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:fetchQrId")
	defer span.End()

	_, err := c.LoggedIn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not logged in")
		return "", err
	}

	body, err := c.fetch(ctx, qrCodePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch qr code page")
		return "", err
	}

	id, err := extractQrId(ctx, string(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find qr id")
		return "", err
	}
	return id, nil
}
