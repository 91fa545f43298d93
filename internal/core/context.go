package core

import "context"

// RequestMeta identifies who sent a submission. It is stored with the
// client record.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta returns a copy of ctx carrying m.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFrom returns the metadata stored by WithRequestMeta, or the
// zero value.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}
