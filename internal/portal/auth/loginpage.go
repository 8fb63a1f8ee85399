package auth

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// DefaultTokenField is the hidden input carrying the login form's anti-forgery token.
const DefaultTokenField = "__RequestVerificationToken"

// LoginPageParser pulls the anti-forgery token out of the login page markup.
type LoginPageParser interface {
	ExtractToken(body io.Reader) (string, error)
}

// HTMLLoginPageParser scans the page for an <input> with the configured name.
type HTMLLoginPageParser struct {
	FieldName string
}

// NewHTMLLoginPageParser returns a parser for the default token field.
func NewHTMLLoginPageParser() *HTMLLoginPageParser {
	return &HTMLLoginPageParser{FieldName: DefaultTokenField}
}

// ExtractToken returns the value of the first matching input. It returns
// ErrCSRFNotFound when the page has no such field.
func (p *HTMLLoginPageParser) ExtractToken(body io.Reader) (string, error) {
	field := p.FieldName
	if field == "" {
		field = DefaultTokenField
	}

	z := html.NewTokenizer(body)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("auth: parse login page: %w", err)
			}
			return "", ErrCSRFNotFound
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "input" {
				continue
			}
			var name, value string
			for _, attr := range tok.Attr {
				switch strings.ToLower(attr.Key) {
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if name == field {
				return value, nil
			}
		}
	}
}
