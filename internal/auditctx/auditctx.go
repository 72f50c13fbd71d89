// Package auditctx carries the request actor from HTTP middleware down to
// service-layer audit logging.
package auditctx

import (
	"context"
	"strings"

	"github.com/mssola/useragent"
)

const maxClientLength = 128

// Actor identifies who initiated a request.
type Actor struct {
	UserID    string
	IPAddress string
	RequestID string
	UserAgent string
}

type actorContextKey struct{}

// WithActor returns a derived context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Client condenses the raw User-Agent header into a short label such as
// "Chrome 120.0 on Windows 10" for audit rows. Unparseable agents keep their
// product token.
func (a Actor) Client() string {
	raw := strings.TrimSpace(a.UserAgent)
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()

	var b strings.Builder
	switch {
	case ua.Bot():
		b.WriteString("bot ")
		b.WriteString(name)
	case name != "":
		b.WriteString(name)
		if version != "" {
			b.WriteString(" ")
			b.WriteString(version)
		}
	default:
		b.WriteString(raw)
	}
	if os := ua.OS(); os != "" && !ua.Bot() {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	if ua.Mobile() {
		b.WriteString(" (mobile)")
	}

	label := strings.TrimSpace(b.String())
	if len(label) > maxClientLength {
		label = label[:maxClientLength]
	}
	return label
}
