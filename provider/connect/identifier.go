// Package connect knows how a Connect web-conferencing server names its recordings: how to find a recording's
// identifier from its playback URL, and where the server may expose the recording's zip archive.
package connect

import (
	"context"
	"time"
)

type IdentifierKind string

const (
	// KindServerID is a numeric identifier assigned by the server (the SCO ID).
	KindServerID IdentifierKind = "sco-id"
	// KindPathToken is taken from the last element of the recording URL path.
	KindPathToken IdentifierKind = "path-id"
)

// Identifier names one recorded session on the origin server.
type Identifier struct {
	Value string
	Kind  IdentifierKind
}

func (i Identifier) String() string {
	return string(i.Kind) + ":" + i.Value
}

// PageFetcher fetches a page body, failing on transport errors and non-2xx statuses. *session.Session implements it.
type PageFetcher interface {
	GetText(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}
