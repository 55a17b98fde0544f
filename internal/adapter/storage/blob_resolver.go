package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// PublicURLResolver maps stored image references to public addresses under a
// fixed base, e.g. a CDN or bucket endpoint.
type PublicURLResolver struct {
	base *url.URL
}

func NewPublicURLResolver(base string) (*PublicURLResolver, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse blob base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("blob base url %q must be absolute", base)
	}
	return &PublicURLResolver{base: u}, nil
}

func (r *PublicURLResolver) PublicURL(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "..") {
		return "", fmt.Errorf("invalid image reference %q", ref)
	}
	return r.base.JoinPath(ref).String(), nil
}
