package tibber

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const (
	connectionTemplate   = `{"type":"connection_init","payload":{"token":"%s"}}`
	subscriptionTemplate = `{"id":"1","type":"subscribe","payload":{"variables":{},"extensions":{},"query":"subscription {\n  liveMeasurement(homeId: \"%s\") {\n    %s\n}\n}\n"}}`

	// fieldSeparator is the JSON-escaped newline placed between field labels
	// inside the query string literal.
	fieldSeparator = `\n`
)

// QueryBuilder accumulates the field selection for one subscription.
// It is a value type: With returns a new builder and leaves the receiver
// untouched, so partially built selections can be shared.
type QueryBuilder struct {
	token  string
	homeID string
	fields []Field
}

func NewQueryBuilder(token, homeID string) QueryBuilder {
	return QueryBuilder{token: token, homeID: homeID}
}

// With appends f to the selection. Duplicates are kept.
func (b QueryBuilder) With(f Field) QueryBuilder {
	fields := make([]Field, len(b.fields), len(b.fields)+1)
	copy(fields, b.fields)
	b.fields = append(fields, f)
	return b
}

// Build renders the connection-init and subscribe messages. It performs no
// escaping of the token or home id; see SubscriptionRequest.Validate.
func (b QueryBuilder) Build() SubscriptionRequest {
	labels := make([]string, len(b.fields))
	for i, f := range b.fields {
		labels[i] = f.String()
	}
	fields := make([]Field, len(b.fields))
	copy(fields, b.fields)

	return SubscriptionRequest{
		token:        b.token,
		homeID:       b.homeID,
		fields:       fields,
		connection:   fmt.Sprintf(connectionTemplate, b.token),
		subscription: fmt.Sprintf(subscriptionTemplate, b.homeID, strings.Join(labels, fieldSeparator)),
	}
}

// SubscriptionRequest holds the two precomputed outbound frames of a session.
type SubscriptionRequest struct {
	token        string
	homeID       string
	fields       []Field
	connection   string
	subscription string
}

func (r SubscriptionRequest) Connection() string   { return r.connection }
func (r SubscriptionRequest) Subscription() string { return r.subscription }
func (r SubscriptionRequest) HomeID() string       { return r.homeID }

func (r SubscriptionRequest) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

var (
	ErrEmptySelection = errors.New("tibber: no fields selected")
	ErrUnsafeLiteral  = errors.New("tibber: value cannot be embedded in query literal")
	ErrMalformedQuery = errors.New("tibber: subscription frame does not carry a valid query")
)

// Validate rejects requests whose rendered frames would not be valid JSON:
// an empty selection, or a token/home id containing quotes, backslashes or
// control characters. The embedded query must also parse as a single
// liveMeasurement subscription.
func (r SubscriptionRequest) Validate() error {
	if len(r.fields) == 0 {
		return ErrEmptySelection
	}
	if r.token == "" {
		return fmt.Errorf("%w: empty token", ErrUnsafeLiteral)
	}
	if r.homeID == "" {
		return fmt.Errorf("%w: empty home id", ErrUnsafeLiteral)
	}
	if bad := unsafeRune(r.token); bad != 0 {
		return fmt.Errorf("%w: token contains %q", ErrUnsafeLiteral, bad)
	}
	if bad := unsafeRune(r.homeID); bad != 0 {
		return fmt.Errorf("%w: home id contains %q", ErrUnsafeLiteral, bad)
	}
	return r.checkQuery()
}

// Query returns the GraphQL document carried by the subscribe frame.
func (r SubscriptionRequest) Query() (string, error) {
	var frame struct {
		Payload struct {
			Query string `json:"query"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(r.subscription), &frame); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}
	return frame.Payload.Query, nil
}

// checkQuery parses the embedded document and requires a single
// subscription selecting liveMeasurement.
func (r SubscriptionRequest) checkQuery() error {
	q, err := r.Query()
	if err != nil {
		return err
	}
	doc, gqlErr := parser.ParseQuery(&ast.Source{Name: "subscription", Input: q})
	if gqlErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedQuery, gqlErr)
	}
	if len(doc.Operations) != 1 || doc.Operations[0].Operation != ast.Subscription {
		return fmt.Errorf("%w: expected one subscription operation", ErrMalformedQuery)
	}
	sel := doc.Operations[0].SelectionSet
	if len(sel) != 1 {
		return fmt.Errorf("%w: expected a single root field", ErrMalformedQuery)
	}
	root, ok := sel[0].(*ast.Field)
	if !ok || root.Name != Category {
		return fmt.Errorf("%w: root field is not %s", ErrMalformedQuery, Category)
	}
	if len(root.SelectionSet) != len(r.fields) {
		return fmt.Errorf("%w: selected %d fields, built with %d", ErrMalformedQuery, len(root.SelectionSet), len(r.fields))
	}
	return nil
}

func unsafeRune(s string) rune {
	for _, r := range s {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return r
		}
	}
	return 0
}
