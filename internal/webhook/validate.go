package webhook

import (
	"context"
	"net"
	"net/url"
	"time"

	"sigrelay/internal/apperrors"
)

// DefaultValidationTimeout bounds the DNS lookup performed during
// admission-time webhook validation.
const DefaultValidationTimeout = 2 * time.Second

// ValidateTarget checks that rawURL is admissible as a webhook target:
// scheme must be http or https, and the host must resolve. Matches
// original_source/tests/test_validate_webhook.py's three cases exactly:
// a reachable host is valid, a resolution failure is invalid, and a
// non-http(s) scheme is rejected without attempting a DNS lookup.
//
// An empty rawURL is always valid ("no notification").
func ValidateTarget(ctx context.Context, rawURL string, resolver *net.Resolver) error {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &apperrors.WebhookTargetInvalidError{URL: rawURL, Reason: "malformed URL"}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &apperrors.WebhookTargetInvalidError{URL: rawURL, Reason: "unsupported scheme " + u.Scheme}
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultValidationTimeout)
	defer cancel()

	if _, err := resolver.LookupHost(ctx, u.Hostname()); err != nil {
		return &apperrors.WebhookTargetInvalidError{URL: rawURL, Reason: "DNS resolution failed: " + err.Error()}
	}

	return nil
}
