package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"studio/internal/domain"
)

// OAuthContext makes token requests issued under ctx go through client.
func OAuthContext(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// TokenError turns a failed token request into a *domain.ProviderError. An
// endpoint that answers 200 with an error body counts as 400.
func TokenError(provider string, err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return fmt.Errorf("%s: token request: %w", provider, err)
	}
	status := http.StatusBadRequest
	if rerr.Response != nil && (rerr.Response.StatusCode < 200 || rerr.Response.StatusCode > 299) {
		status = rerr.Response.StatusCode
	}
	code, msg := rerr.ErrorCode, rerr.ErrorDescription
	if msg == "" {
		bodyCode, bodyMsg := extractMessage(rerr.Body)
		code = firstNonEmpty(code, bodyCode)
		msg = bodyMsg
	}
	return &domain.ProviderError{Provider: provider, Status: status, Code: code, Message: msg}
}
