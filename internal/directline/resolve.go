// Package directline resolves the regional transport endpoint for a hosted
// agent and bootstraps the conversation channel on top of it.
package directline

import (
	"fmt"
	"net/url"
	"strings"
)

// agentPathMarker is the fixed path segment that starts the agent-specific
// part of a conversation-start URL. Everything before it is the
// environment endpoint.
const agentPathMarker = "/powervirtualagents"

// Descriptor is the parsed form of a conversation-start URL. Parsed once
// from configuration, read-only afterwards.
type Descriptor struct {
	BaseURL             string
	APIVersion          string
	EnvironmentEndpoint string
}

// ParseDescriptor parses a conversation-start URL into a Descriptor.
// The URL must be absolute, carry an api-version query parameter, and
// contain the agent path segment.
func ParseDescriptor(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parsing conversation-start URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Descriptor{}, fmt.Errorf("conversation-start URL must be absolute, got %q", raw)
	}

	apiVersion := u.Query().Get("api-version")
	if apiVersion == "" {
		return Descriptor{}, fmt.Errorf("conversation-start URL %q has no api-version parameter", raw)
	}

	idx := strings.Index(u.Path, agentPathMarker)
	if idx < 0 {
		return Descriptor{}, fmt.Errorf("conversation-start URL %q does not contain %q", raw, agentPathMarker)
	}

	return Descriptor{
		BaseURL:             raw,
		APIVersion:          apiVersion,
		EnvironmentEndpoint: u.Scheme + "://" + u.Host + u.Path[:idx],
	}, nil
}

// RegionalSettingsURL is the sibling endpoint on the same environment host
// that reports the regional channel URLs, queried with the same api-version.
func (d Descriptor) RegionalSettingsURL() string {
	return d.EnvironmentEndpoint + agentPathMarker + "/regionalchannelsettings?api-version=" + url.QueryEscape(d.APIVersion)
}
