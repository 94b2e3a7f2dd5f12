package htmlutil

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("multiposs.lib.htmlutil")

var MarkerNotFound = fmt.Errorf("marker not found")

// Space matches the whitespace a browser script engine skips, which
// includes non-breaking and other unicode spaces that \s does not.
const Space = `[\s\v\p{Z}\x{FEFF}]`

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// LineMarker finds a value embedded in a page by matching a single line
// against a pattern with one capture group.
type LineMarker struct {
	Name    string
	Pattern *regexp.Regexp
}

func NewLineMarker(name, pattern string) LineMarker {
	return LineMarker{
		Name:    name,
		Pattern: regexp.MustCompile(pattern),
	}
}

// Find returns the first capture of the marker, the returned error wraps
// MarkerNotFound when no line matches.
func (m LineMarker) Find(ctx context.Context, body string) (string, error) {
	_, span := tracer.Start(ctx, "LineMarker:Find")
	defer span.End()
	span.SetAttributes(attribute.String("marker", m.Name))

	groups := m.Pattern.FindStringSubmatch(body)
	if len(groups) < 2 {
		span.SetStatus(codes.Error, "marker not found")
		return "", fmt.Errorf("%s: %w", m.Name, MarkerNotFound)
	}
	return groups[1], nil
}

// ElementText returns the text content of the element with the given id,
// or an empty string if there is no such element.
func ElementText(ctx context.Context, body []byte, id string) (string, error) {
	_, span := tracer.Start(ctx, "ElementText")
	defer span.End()
	span.SetAttributes(attribute.String("id", id))

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return "", err
	}

	var text strings.Builder
	for _, n := range doc.Find("#" + id).Nodes {
		text.WriteString(GetText(n))
	}
	return text.String(), nil
}
