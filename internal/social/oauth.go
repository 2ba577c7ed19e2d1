// Package social connects user accounts on TikTok and Instagram and publishes
// generated videos to them.
package social

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/instagram"
	"studio/internal/providers/tiktok"
)

const (
	CookieTikTokState    = "tiktok_oauth_state"
	CookieTikTokVerifier = "tiktok_code_verifier"
	CookieInstagramState = "instagram_oauth_state"
	CookieOAuthUser      = "oauth_user"

	cookieMaxAge = 10 * time.Minute
)

type OAuthOptions struct {
	TikTok    *tiktok.Client
	Instagram *instagram.Client
	Tokens    domain.SocialTokenRepository
	// RedirectURL returns the callback registered with the platform.
	RedirectURL func(domain.Platform) (string, error)
	// CookieKey signs the oauth_user cookie. A random key is used when empty.
	CookieKey     []byte
	SecureCookies bool
	Random        io.Reader
	Now           func() time.Time
	Logger        *infra.Logger
}

// OAuthService runs the authorization-code flows of both platforms.
type OAuthService struct {
	tiktok      *tiktok.Client
	instagram   *instagram.Client
	tokens      domain.SocialTokenRepository
	redirectURL func(domain.Platform) (string, error)
	cookieKey   []byte
	secure      bool
	random      io.Reader
	now         func() time.Time
	logger      *infra.Logger
}

// Authorization is where to send the browser and what to remember meanwhile.
type Authorization struct {
	URL     string
	Cookies []*http.Cookie
}

// Callback carries what the platform redirected back with plus the cookies
// set by Begin.
type Callback struct {
	Code        string
	State       string
	Error       string
	CookieState string
	Verifier    string
}

func NewOAuthService(opts OAuthOptions) *OAuthService {
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	key := opts.CookieKey
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = io.ReadFull(rand.Reader, key)
	}
	return &OAuthService{
		tiktok:      opts.TikTok,
		instagram:   opts.Instagram,
		tokens:      opts.Tokens,
		redirectURL: opts.RedirectURL,
		cookieKey:   key,
		secure:      opts.SecureCookies,
		random:      random,
		now:         now,
		logger:      infra.NopLogger(opts.Logger),
	}
}

// Begin builds the consent URL. TikTok additionally gets a PKCE verifier,
// kept in a cookie until the callback.
func (s *OAuthService) Begin(platform domain.Platform, userID string) (Authorization, error) {
	if strings.TrimSpace(userID) == "" {
		return Authorization{}, domain.ErrUnauthorized
	}
	redirect, err := s.redirectURL(platform)
	if err != nil {
		return Authorization{}, err
	}
	state, err := s.newState()
	if err != nil {
		return Authorization{}, err
	}

	var auth Authorization
	switch platform {
	case domain.PlatformTikTok:
		verifier := oauth2.GenerateVerifier()
		auth.URL, err = s.tiktok.AuthorizeURL(redirect, state, verifier)
		if err != nil {
			return Authorization{}, err
		}
		auth.Cookies = []*http.Cookie{s.cookie(CookieTikTokState, state), s.cookie(CookieTikTokVerifier, verifier)}
	case domain.PlatformInstagram:
		auth.URL, err = s.instagram.AuthorizeURL(redirect, state)
		if err != nil {
			return Authorization{}, err
		}
		auth.Cookies = []*http.Cookie{s.cookie(CookieInstagramState, state)}
	default:
		return Authorization{}, fmt.Errorf("unsupported platform %q", platform)
	}
	auth.Cookies = append(auth.Cookies, s.cookie(CookieOAuthUser, s.signUser(userID)))
	s.logger.Info().Str("platform", string(platform)).Str("user_id", userID).Msg("oauth: authorization started")
	return auth, nil
}

// Complete verifies state, exchanges the code and stores the token. The state
// check runs before any request leaves the process.
func (s *OAuthService) Complete(ctx context.Context, platform domain.Platform, userID string, cb Callback) (*domain.SocialToken, error) {
	if cb.State == "" || cb.CookieState == "" || subtle.ConstantTimeCompare([]byte(cb.State), []byte(cb.CookieState)) != 1 {
		return nil, domain.ErrInvalidState
	}
	if cb.Error != "" {
		return nil, fmt.Errorf("%w: %s denied access: %s", domain.ErrUnauthorized, platform, cb.Error)
	}
	if strings.TrimSpace(cb.Code) == "" {
		return nil, fmt.Errorf("%w: authorization code missing", domain.ErrInvalidState)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	redirect, err := s.redirectURL(platform)
	if err != nil {
		return nil, err
	}

	var tok *domain.SocialToken
	switch platform {
	case domain.PlatformTikTok:
		if cb.Verifier == "" {
			return nil, fmt.Errorf("%w: code verifier missing", domain.ErrInvalidState)
		}
		tok, err = s.completeTikTok(ctx, userID, cb.Code, redirect, cb.Verifier)
	case domain.PlatformInstagram:
		tok, err = s.completeInstagram(ctx, userID, cb.Code, redirect)
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Upsert(ctx, tok); err != nil {
		return nil, fmt.Errorf("store %s token: %w", platform, err)
	}
	s.logger.Info().Str("platform", string(platform)).Str("user_id", userID).Str("username", tok.Username).Msg("oauth: account connected")
	return tok, nil
}

func (s *OAuthService) completeTikTok(ctx context.Context, userID, code, redirect, verifier string) (*domain.SocialToken, error) {
	t, err := s.tiktok.ExchangeCode(ctx, code, redirect, verifier)
	if err != nil {
		return nil, err
	}
	user, err := s.tiktok.UserInfo(ctx, t.AccessToken)
	if err != nil {
		return nil, err
	}
	openID := t.OpenID
	if openID == "" {
		openID = user.OpenID
	}
	username := user.Username
	if username == "" {
		username = user.DisplayName
	}
	return &domain.SocialToken{
		UserID:         userID,
		Platform:       domain.PlatformTikTok,
		AccessToken:    t.AccessToken,
		RefreshToken:   t.RefreshToken,
		ExpiresAt:      t.ExpiresAt(s.now()),
		PlatformUserID: openID,
		Username:       username,
	}, nil
}

// Instagram keeps the page token derived from a long-lived user token. It does
// not expire and is never refreshed.
func (s *OAuthService) completeInstagram(ctx context.Context, userID, code, redirect string) (*domain.SocialToken, error) {
	short, err := s.instagram.ExchangeCode(ctx, code, redirect)
	if err != nil {
		return nil, err
	}
	long, err := s.instagram.LongLived(ctx, short.AccessToken)
	if err != nil {
		return nil, err
	}
	acct, err := s.instagram.BusinessAccount(ctx, long.AccessToken)
	if err != nil {
		return nil, err
	}
	return &domain.SocialToken{
		UserID:         userID,
		Platform:       domain.PlatformInstagram,
		AccessToken:    acct.PageToken,
		PlatformUserID: acct.UserID,
		Username:       acct.Username,
	}, nil
}

// Disconnect forgets the stored token.
func (s *OAuthService) Disconnect(ctx context.Context, platform domain.Platform, userID string) error {
	if err := s.tokens.Delete(ctx, userID, platform); err != nil {
		return fmt.Errorf("delete %s token: %w", platform, err)
	}
	s.logger.Info().Str("platform", string(platform)).Str("user_id", userID).Msg("oauth: account disconnected")
	return nil
}

// Accounts lists the connected platforms of a user.
func (s *OAuthService) Accounts(ctx context.Context, userID string) ([]domain.SocialToken, error) {
	return s.tokens.ListByUser(ctx, userID)
}

// UserFromCookie validates the signed oauth_user cookie set by Begin.
func (s *OAuthService) UserFromCookie(value string) (string, error) {
	userID, sig, ok := strings.Cut(value, ".")
	if !ok || userID == "" {
		return "", domain.ErrUnauthorized
	}
	want := s.mac(userID)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", domain.ErrUnauthorized
	}
	return userID, nil
}

// ClearCookies expires every cookie Begin may have set for platform.
func (s *OAuthService) ClearCookies(platform domain.Platform) []*http.Cookie {
	names := []string{CookieOAuthUser}
	switch platform {
	case domain.PlatformTikTok:
		names = append(names, CookieTikTokState, CookieTikTokVerifier)
	case domain.PlatformInstagram:
		names = append(names, CookieInstagramState)
	}
	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		c := s.cookie(name, "")
		c.MaxAge = -1
		out = append(out, c)
	}
	return out
}

// StateCookie names the cookie holding the state for platform.
func StateCookie(platform domain.Platform) string {
	if platform == domain.PlatformTikTok {
		return CookieTikTokState
	}
	return CookieInstagramState
}

func (s *OAuthService) newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *OAuthService) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *OAuthService) signUser(userID string) string {
	return userID + "." + s.mac(userID)
}

func (s *OAuthService) mac(v string) string {
	m := hmac.New(sha256.New, s.cookieKey)
	m.Write([]byte(v))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// IsStateError reports whether err is a CSRF/state rejection.
func IsStateError(err error) bool {
	return errors.Is(err, domain.ErrInvalidState)
}
