package civic

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DiscoverEndpoint reads the issuer's OpenID configuration and returns
// its OAuth2 endpoints.
func DiscoverEndpoint(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("discovering %s: %w", issuer, err)
	}

	endpoint := provider.Endpoint()
	if endpoint.AuthURL == "" {
		return oauth2.Endpoint{}, fmt.Errorf("issuer %s advertises no authorization endpoint", issuer)
	}
	return endpoint, nil
}
