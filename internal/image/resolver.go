// Package image resolves stored image tokens into URLs the client can fetch,
// depending on where the service is deployed.
package image

import (
	"strings"

	"github.com/pystore/catalog/pkg/slug"
)

// Mode describes the deployment environment the service runs in. Serverless
// deployments have no writable upload directory, so stored filenames cannot
// be served and a placeholder is returned instead.
type Mode string

const (
	ModeLocal      Mode = "local"
	ModeContainer  Mode = "container"
	ModeServerless Mode = "serverless"
)

// ParseMode maps a configuration string to a Mode, defaulting to local.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeContainer):
		return ModeContainer
	case string(ModeServerless):
		return ModeServerless
	default:
		return ModeLocal
	}
}

// uploadPath is where the upload handler writes product images; resolved URLs
// for stored filenames point under it.
const uploadPath = "/uploads/produtos/"

// placeholderBase serves generated placeholder images for serverless deployments.
const placeholderBase = "https://placehold.co/600x400"

// maxPlaceholderSlug caps how much of the product name ends up in the
// placeholder text.
const maxPlaceholderSlug = 24

// Resolver turns stored image tokens into fetchable URLs.
type Resolver struct {
	mode    Mode
	baseURL string
}

// NewResolver creates a resolver for the given deployment mode and base URL.
// The base URL should not carry a trailing slash.
func NewResolver(mode Mode, baseURL string) *Resolver {
	return &Resolver{
		mode:    mode,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Resolve maps a stored image token to a URL.
//
// Absolute URLs and root-relative paths are passed through untouched: the
// token was stored as a full reference already. An empty token resolves to an
// empty URL. Bare filenames resolve under the upload directory, except in
// serverless mode where a placeholder URL carrying the product name is
// returned because uploaded files do not survive across invocations.
func (r *Resolver) Resolve(token, productName string) string {
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") || strings.HasPrefix(token, "/") {
		return token
	}

	if r.mode == ModeServerless {
		text := slug.Generate(productName)
		if text == "" {
			text = slug.Generate(token)
		}
		if text == "" {
			text = "produto"
		}
		return placeholderBase + "?text=" + slug.Truncate(text, maxPlaceholderSlug)
	}

	return r.baseURL + uploadPath + token
}
