package token

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
)

// Guard turns a raw bearer token into the identity of a session.
type Guard struct {
	codec *Codec
}

func NewGuard(codec *Codec) *Guard {
	return &Guard{codec: codec}
}

// Authenticate returns the subject of a valid session token. Missing,
// malformed, expired and non-session tokens all yield ErrUnauthenticated.
func (g *Guard) Authenticate(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: no token", common.ErrUnauthenticated)
	}
	sub, err := g.codec.Decode(raw, PurposeSession)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	return sub, nil
}

type contextKey struct {
	name string
}

var subjectCtxKey = &contextKey{"subject"}

// WithSubject stores the authenticated subject id in ctx.
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectCtxKey, subjectID)
}

// SubjectFromContext returns the subject stored by WithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectCtxKey).(string)
	return sub, ok && sub != ""
}
