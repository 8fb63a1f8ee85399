// Package auth performs the portal's form-based authorization-code login with PKCE
// and holds the resulting bearer credential.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/slotwatch/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
)

var authTracer = otel.Tracer("slotwatch.internal.portal.auth")

// State is a position in the login handshake.
type State string

const (
	StateInit                 State = "init"
	StateChallengeIssued      State = "challenge_issued"
	StateRedirectedToLogin    State = "redirected_to_login"
	StateCSRFExtracted        State = "csrf_extracted"
	StateCredentialsSubmitted State = "credentials_submitted"
	StateCodeObtained         State = "code_obtained"
	StateTokenExchanged       State = "token_exchanged"
	StateFailed               State = "failed"
)

const (
	defaultClientID = "web"
	defaultScope    = "openid offline_access profile"
	defaultTimeout  = 30 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
}

// Config describes the portal's login endpoints and fixed client parameters.
type Config struct {
	LoginBaseURL string // e.g. https://login-online24.medicover.pl
	AppBaseURL   string // e.g. https://online24.medicover.pl
	ClientID     string
	Scope        string
	UILocale     string
	AppVersion   string
	DeviceName   string
	Timeout      time.Duration
	UserAgent    string
}

// Credential is the bearer token obtained from a successful handshake.
type Credential struct {
	AccessToken         string
	AuthorizationHeader string
	Subject             string
	ExpiresAt           time.Time
}

// handshake is the per-attempt state; it never outlives Authenticate.
type handshake struct {
	state         string
	deviceID      string
	codeVerifier  string
	codeChallenge string
	authQuery     string
	csrfToken     string
	code          string
}

// Session owns the cookie-carrying HTTP context used for login and API calls.
type Session struct {
	cfg        Config
	username   string
	password   string
	noFollow   *http.Client
	httpClient *http.Client
	parser     LoginPageParser
	logger     *logging.Logger
	now        func() time.Time
	userAgent  string

	state      State
	credential *Credential
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the HTTP client used for API calls. The session
// derives its non-redirecting login client from it and installs a cookie jar
// when the client has none.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLoginPageParser swaps the token extractor for the login page.
func WithLoginPageParser(p LoginPageParser) Option {
	return func(s *Session) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for the ts parameter.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession prepares a session for one account. It performs no I/O.
func NewSession(cfg Config, username, password string, opts ...Option) *Session {
	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.LoginBaseURL = strings.TrimRight(cfg.LoginBaseURL, "/")
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")

	s := &Session{
		cfg:        cfg,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		parser:     NewHTMLLoginPageParser(),
		logger:     logging.Default(),
		now:        time.Now,
		state:      StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient.Jar == nil {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		client := *s.httpClient
		client.Jar = jar
		s.httpClient = &client
	}
	noFollow := *s.httpClient
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	s.noFollow = &noFollow

	s.userAgent = cfg.UserAgent
	if s.userAgent == "" {
		s.userAgent = userAgents[rand.IntN(len(userAgents))]
	}
	return s
}

// State reports where the last handshake stopped.
func (s *Session) State() State {
	return s.state
}

// Credential returns the bearer credential, or nil before a successful handshake.
func (s *Session) Credential() *Credential {
	return s.credential
}

// Authenticate runs the full login handshake. Steps run strictly in order
// because each depends on cookies and redirect targets from the previous one.
func (s *Session) Authenticate(ctx context.Context) (*Credential, error) {
	ctx, span := authTracer.Start(ctx, "portal.auth.authenticate")
	defer span.End()

	cred, err := s.authenticate(ctx)
	span.SetAttributes(attribute.String("auth.state", string(s.state)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake failed")
		s.logger.Error("portal login failed", "state", s.state, "error", err)
		return nil, err
	}
	return cred, nil
}

func (s *Session) authenticate(ctx context.Context) (*Credential, error) {
	s.state = StateInit
	s.credential = nil

	hs := s.newHandshake()
	s.state = StateChallengeIssued

	// Step 1: authorize request; the portal answers with a redirect to its login page.
	authorizeURL := s.cfg.LoginBaseURL + "/connect/authorize?" + hs.authQuery
	resp, err := s.get(ctx, authorizeURL)
	if err != nil {
		return nil, s.fail(StateChallengeIssued, ErrNoRedirect, 0, err)
	}
	drain(resp)
	if !redirectOrOK(resp.StatusCode) {
		return nil, s.fail(StateChallengeIssued, ErrNoRedirect, resp.StatusCode, nil)
	}
	loginURL, err := s.location(resp)
	if err != nil {
		return nil, s.fail(StateChallengeIssued, ErrNoRedirect, resp.StatusCode, err)
	}
	s.state = StateRedirectedToLogin

	// Step 2: login page carries the anti-forgery token.
	resp, err = s.get(ctx, loginURL)
	if err != nil {
		return nil, s.fail(StateRedirectedToLogin, ErrCSRFNotFound, 0, err)
	}
	if !redirectOrOK(resp.StatusCode) {
		drain(resp)
		return nil, s.fail(StateRedirectedToLogin, ErrCSRFNotFound, resp.StatusCode, nil)
	}
	token, err := s.parser.ExtractToken(resp.Body)
	drain(resp)
	if err != nil {
		return nil, s.fail(StateRedirectedToLogin, ErrCSRFNotFound, resp.StatusCode, err)
	}
	hs.csrfToken = token
	s.state = StateCSRFExtracted

	// Step 3: submit credentials back to the login page.
	form := url.Values{
		"Input.ReturnUrl":            {"/connect/authorize/callback?" + hs.authQuery},
		"Input.LoginType":            {"FullLogin"},
		"Input.Username":             {s.username},
		"Input.Password":             {s.password},
		"Input.Button":               {"login"},
		"__RequestVerificationToken": {hs.csrfToken},
	}
	resp, err = s.postForm(ctx, s.noFollow, loginURL, form)
	if err != nil {
		return nil, s.fail(StateCSRFExtracted, ErrLoginRejected, 0, err)
	}
	drain(resp)
	if !redirectOrOK(resp.StatusCode) {
		return nil, s.fail(StateCSRFExtracted, ErrLoginRejected, resp.StatusCode, nil)
	}
	callbackURL, err := s.location(resp)
	if err != nil {
		return nil, s.fail(StateCSRFExtracted, ErrLoginRejected, resp.StatusCode, err)
	}
	s.state = StateCredentialsSubmitted

	// Step 4: the callback redirects to the app with the authorization code.
	resp, err = s.get(ctx, callbackURL)
	if err != nil {
		return nil, s.fail(StateCredentialsSubmitted, ErrCodeMissing, 0, err)
	}
	drain(resp)
	if !redirectOrOK(resp.StatusCode) {
		return nil, s.fail(StateCredentialsSubmitted, ErrCodeMissing, resp.StatusCode, nil)
	}
	code, err := codeFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return nil, s.fail(StateCredentialsSubmitted, ErrCodeMissing, resp.StatusCode, err)
	}
	hs.code = code
	s.state = StateCodeObtained

	// Step 5: exchange the code and verifier for tokens.
	accessToken, status, err := s.exchange(ctx, hs)
	if err != nil {
		return nil, s.fail(StateCodeObtained, ErrTokenExchangeFailed, status, err)
	}

	cred := &Credential{
		AccessToken:         accessToken,
		AuthorizationHeader: "Bearer " + accessToken,
	}
	if claims, err := ParseClaims(accessToken); err == nil {
		cred.Subject = claims.Subject
		cred.ExpiresAt = claims.ExpiresAt
	} else {
		s.logger.Debug("access token is not a readable JWT", "error", err)
	}
	s.credential = cred
	s.state = StateTokenExchanged
	s.logger.Info("portal login succeeded", "subject", cred.Subject, "expires_at", cred.ExpiresAt)
	return cred, nil
}

func (s *Session) newHandshake() *handshake {
	hs := &handshake{
		state:        NewState(),
		deviceID:     NewDeviceID().String(),
		codeVerifier: NewCodeVerifier(),
	}
	hs.codeChallenge = CodeChallenge(hs.codeVerifier)
	hs.authQuery = s.authorizeQuery(hs)
	return hs
}

// authorizeQuery builds the query shared by the authorize request and the
// login form's return URL. Order matches what the portal's web client sends.
func (s *Session) authorizeQuery(hs *handshake) string {
	pairs := [][2]string{
		{"client_id", s.cfg.ClientID},
		{"redirect_uri", s.redirectURI()},
		{"response_type", "code"},
		{"scope", s.cfg.Scope},
		{"state", hs.state},
		{"code_challenge", hs.codeChallenge},
		{"code_challenge_method", "S256"},
		{"response_mode", "query"},
		{"ui_locales", s.cfg.UILocale},
		{"app_version", s.cfg.AppVersion},
		{"previous_app_version", s.cfg.AppVersion},
		{"device_id", hs.deviceID},
		{"device_name", s.cfg.DeviceName},
		{"ts", strconv.FormatInt(s.now().UnixMilli(), 10)},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	return strings.Join(parts, "&")
}

func (s *Session) redirectURI() string {
	return s.cfg.AppBaseURL + "/signin-oidc"
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Session) exchange(ctx context.Context, hs *handshake) (string, int, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {s.redirectURI()},
		"code":          {hs.code},
		"code_verifier": {hs.codeVerifier},
		"client_id":     {s.cfg.ClientID},
	}
	resp, err := s.postForm(ctx, s.httpClient, s.cfg.LoginBaseURL+"/connect/token", form)
	if err != nil {
		return "", 0, err
	}
	defer drain(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("token endpoint returned %s", truncate(string(body), 200))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", resp.StatusCode, fmt.Errorf("token response has no access_token")
	}
	return tok.AccessToken, resp.StatusCode, nil
}

// Do sends an API request with the session's cookies and bearer credential.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.credential == nil {
		return nil, ErrNotAuthenticated
	}
	s.decorate(req)
	req.Header.Set("Authorization", s.credential.AuthorizationHeader)
	return s.httpClient.Do(req)
}

func (s *Session) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.decorate(req)
	return s.noFollow.Do(req)
}

func (s *Session) postForm(ctx context.Context, client *http.Client, target string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return client.Do(req)
}

func (s *Session) decorate(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// location resolves the Location header against the login host.
func (s *Session) location(resp *http.Response) (string, error) {
	raw := strings.TrimSpace(resp.Header.Get("Location"))
	if raw == "" {
		return "", fmt.Errorf("response has no Location header")
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse Location %q: %w", raw, err)
	}
	base, err := url.Parse(s.cfg.LoginBaseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse login base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *Session) fail(step State, kind error, status int, cause error) error {
	s.state = StateFailed
	return &AuthError{Step: step, Kind: kind, Status: status, Err: cause}
}

func codeFromLocation(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("response has no Location header")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse Location %q: %w", raw, err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("no code parameter in %q", u.Path)
	}
	return code, nil
}

func redirectOrOK(status int) bool {
	return status >= 200 && status < 400
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
