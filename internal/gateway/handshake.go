package gateway

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
)

// HandshakeState is the progress of the two-step credential handshake.
type HandshakeState int

const (
	// Unauthenticated means no handshake has started.
	Unauthenticated HandshakeState = iota
	// RequestTokenPending means the temporary-credential request is in
	// flight.
	RequestTokenPending
	// AwaitingVerifier means the user has been sent the authorization URL
	// and the session is waiting for the PIN.
	AwaitingVerifier
	// AccessTokenPending means the verifier exchange is in flight.
	AccessTokenPending
	// Authenticated means a durable access credential is installed.
	Authenticated
	// Failed means the handshake ended in an error; the session is dead.
	Failed
)

func (st HandshakeState) String() string {
	switch st {
	case Unauthenticated:
		return "unauthenticated"
	case RequestTokenPending:
		return "request token pending"
	case AwaitingVerifier:
		return "awaiting verifier"
	case AccessTokenPending:
		return "access token pending"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// AccessCredential is the durable credential produced by a completed
// handshake. ScreenName is the remote account name as the service knows
// it, which may differ from the configured one.
type AccessCredential struct {
	Token      string
	Secret     string
	ScreenName string
}

// TokenExchanger performs the two remote steps of the handshake. Both
// calls block and are run on their own goroutine.
type TokenExchanger interface {
	RequestToken() (token, secret string, err error)
	AuthorizationURL(token string) (string, error)
	AccessToken(token, secret, verifier string) (AccessCredential, error)
}

// OAuth1Exchanger adapts an oauth1.Config to the TokenExchanger interface.
type OAuth1Exchanger struct {
	Config *oauth1.Config
}

func (e *OAuth1Exchanger) RequestToken() (string, string, error) {
	return e.Config.RequestToken()
}

func (e *OAuth1Exchanger) AuthorizationURL(token string) (string, error) {
	u, err := e.Config.AuthorizationURL(token)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (e *OAuth1Exchanger) AccessToken(token, secret, verifier string) (AccessCredential, error) {
	accessToken, accessSecret, err := e.Config.AccessToken(token, secret, verifier)
	if err != nil {
		return AccessCredential{}, err
	}
	return AccessCredential{Token: accessToken, Secret: accessSecret}, nil
}

// handshake holds the in-progress handshake state. The token pair is only
// meaningful while awaiting the verifier.
type handshake struct {
	state  HandshakeState
	token  string
	secret string
}

func (s *Session) handshakeStateLocked() HandshakeState {
	if s.handshake == nil {
		if s.credential != "" {
			return Authenticated
		}
		return Unauthenticated
	}
	return s.handshake.state
}

// startHandshake begins the credential handshake. Called with s.mu held.
func (s *Session) startHandshake() {
	if s.exchanger == nil {
		s.snk.Error("Authentication failure")
		s.logoutLocked()
		return
	}
	if s.handshake != nil && s.handshake.state != Unauthenticated {
		return
	}
	s.handshake = &handshake{state: RequestTokenPending}
	s.snk.Log("Requesting OAuth request token")
	go s.runRequestToken()
}

func (s *Session) runRequestToken() {
	token, secret, err := s.exchanger.RequestToken()
	var authURL string
	if err == nil {
		authURL, err = s.exchanger.AuthorizationURL(token)
	}

	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshake == nil || s.handshake.state != RequestTokenPending {
		return
	}
	if err != nil {
		s.handshake.state = Failed
		s.snk.Error("OAuth error: " + err.Error())
		s.logoutLocked()
		return
	}
	s.handshake.token = token
	s.handshake.secret = secret
	s.handshake.state = AwaitingVerifier
	s.snk.DirectMessage(s.serviceBuddy(),
		fmt.Sprintf("To finish authorization, please visit %s and respond with the resulting PIN code.", authURL),
		nowFunc())
}

// SubmitVerifier feeds the user-supplied PIN into the handshake. Outside
// the awaiting-verifier state the PIN is ignored with a notice.
func (s *Session) SubmitVerifier(pin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitVerifierLocked(pin)
}

func (s *Session) submitVerifierLocked(pin string) {
	if s.handshake == nil || s.handshake.state != AwaitingVerifier {
		s.snk.Log("No pending authorization to confirm")
		return
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		s.snk.Log("No pending authorization to confirm")
		return
	}
	s.handshake.state = AccessTokenPending
	go s.runAccessToken(s.handshake.token, s.handshake.secret, pin)
}

func (s *Session) runAccessToken(token, secret, verifier string) {
	cred, err := s.exchanger.AccessToken(token, secret, verifier)

	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshake == nil || s.handshake.state != AccessTokenPending {
		return
	}
	if err != nil {
		s.handshake.state = Failed
		s.snk.Error("OAuth error: " + err.Error())
		s.logoutLocked()
		return
	}
	s.handshake.state = Authenticated

	if cred.ScreenName != "" && !strings.EqualFold(cred.ScreenName, s.cfg.Account) {
		s.snk.Log(fmt.Sprintf("Warning: the server claims your username is %s, using it from now on", cred.ScreenName))
		s.user = cred.ScreenName
	}

	serialized := SerializeCredential(cred)
	s.setCredential(serialized)
	if s.st != nil {
		if err := s.st.SaveCredential(s.cfg.Account, serialized); err != nil {
			s.snk.Error("Could not save credential: " + err.Error())
		}
	}
	s.loginFinish()
}

// SerializeCredential encodes an access credential as a form-style string,
// the shape it replaces the configured password with.
func SerializeCredential(cred AccessCredential) string {
	v := url.Values{}
	v.Set("oauth_token", cred.Token)
	v.Set("oauth_token_secret", cred.Secret)
	if cred.ScreenName != "" {
		v.Set("screen_name", cred.ScreenName)
	}
	return v.Encode()
}

// parseCredentialToken decodes a serialized credential into a signing
// token. Unparseable input yields an empty token, which signs nothing.
func parseCredentialToken(serialized string) *oauth1.Token {
	v, err := url.ParseQuery(serialized)
	if err != nil {
		return oauth1.NewToken("", "")
	}
	return oauth1.NewToken(v.Get("oauth_token"), v.Get("oauth_token_secret"))
}
