package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studio/internal/providers/openai"
)

var ErrInvalidOffer = errors.New("realtime: offer is not an SDP document")

// SDPClient is the part of the OpenAI client used for WebRTC negotiation.
type SDPClient interface {
	SessionProvider
	ExchangeSDP(ctx context.Context, ephemeralKey, offer string) (string, error)
}

// SDPExchange mints a session for the browser and trades its SDP offer for
// the provider's answer. The browser then talks to OpenAI directly.
func SDPExchange(ctx context.Context, client SDPClient, offer string) (string, openai.Session, error) {
	if !strings.HasPrefix(strings.TrimSpace(offer), "v=") {
		return "", openai.Session{}, ErrInvalidOffer
	}
	sess, err := client.CreateSession(ctx, SessionRequest(Instructions))
	if err != nil {
		return "", openai.Session{}, fmt.Errorf("realtime: create session: %w", err)
	}
	answer, err := client.ExchangeSDP(ctx, sess.ClientSecret, offer)
	if err != nil {
		return "", openai.Session{}, fmt.Errorf("realtime: exchange sdp: %w", err)
	}
	return answer, sess, nil
}
