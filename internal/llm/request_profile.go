package llm

import "context"

const (
	PurposeChat   = "chat"
	PurposeInline = "inline_completion"
	PurposeHover  = "hover"
)

// RequestProfile tags an oracle request with where it came from so client
// logs can tell an agent turn from an editor keystroke.
type RequestProfile struct {
	Purpose   string
	SessionID string
}

type profileKey struct{}

func WithRequestProfile(ctx context.Context, profile RequestProfile) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, profileKey{}, profile)
}

func RequestProfileFromContext(ctx context.Context) (RequestProfile, bool) {
	if ctx == nil {
		return RequestProfile{}, false
	}
	profile, ok := ctx.Value(profileKey{}).(RequestProfile)
	return profile, ok
}
