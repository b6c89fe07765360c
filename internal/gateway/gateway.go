// Package gateway implements the timeline synchronization and interaction
// engine: it logs a session in through the credential handshake, resolves
// the friend roster, repeatedly fetches and merges the home and mentions
// feeds, and interprets user commands against previously displayed items.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/avlott/birdfeed/internal/config"
	"github.com/avlott/birdfeed/internal/sink"
	"github.com/avlott/birdfeed/internal/store"
	"github.com/avlott/birdfeed/internal/transport"
)

// Remote API endpoints, relative to the configured base URL.
const (
	endpointStatusUpdate     = "/statuses/update.xml"
	endpointStatusDestroy    = "/statuses/destroy/" // + "<id>.xml"
	endpointStatusRetweet    = "/statuses/retweet/" // + "<id>.xml"
	endpointHomeTimeline     = "/statuses/home_timeline.xml"
	endpointMentions         = "/statuses/mentions.xml"
	endpointUsersLookup      = "/users/lookup.xml"
	endpointFriendIDs        = "/friends/ids.xml"
	endpointDirectMessageNew = "/direct_messages/new.xml"
	endpointFriendshipCreate = "/friendships/create.xml"
	endpointFriendshipDelete = "/friendships/destroy.xml"
)

// nowFunc is swapped out in tests.
var nowFunc = time.Now

// failureThreshold is the number of consecutive transport failures after
// which a persistent, user-visible error is raised. The session itself
// survives; only handshake and friend-resolution failures are fatal.
const failureThreshold = 5

// Registry is the process-wide set of live sessions. A session is a member
// from login to logout; every asynchronous callback checks membership
// before touching session state, since a completion may arrive after
// logout.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Session]struct{})}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// remove reports whether the session was a member.
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[s]
	delete(r.sessions, s)
	return ok
}

// Contains reports whether s is live.
func (r *Registry) Contains(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[s]
	return ok
}

// SessionStatus is a point-in-time snapshot of one session, exposed on the
// status dashboard.
type SessionStatus struct {
	Account   string `json:"account"`
	LoggedIn  bool   `json:"logged_in"`
	Fetching  bool   `json:"fetching"`
	Watermark uint64 `json:"watermark"`
	Failures  int    `json:"failures"`
	Contacts  int    `json:"contacts"`
	Handshake string `json:"handshake"`
}

// Sessions returns a snapshot of every live session.
func (r *Registry) Sessions() []SessionStatus {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	out := make([]SessionStatus, 0, len(live))
	for _, s := range live {
		out = append(out, s.Status())
	}
	return out
}

// credentialSetter is implemented by transports that sign requests with an
// access credential.
type credentialSetter interface {
	SetCredential(token *oauth1.Token)
}

// Session is one logged-in account. All mutable state is guarded by mu and
// owned exclusively by this session; the only cross-session state is the
// Registry.
type Session struct {
	cfg       *config.Config
	tr        transport.Transport
	snk       sink.Sink
	st        *store.Store
	registry  *Registry
	exchanger TokenExchanger
	out       io.Writer
	ctx       context.Context

	mu           sync.Mutex
	user         string // remote handle; may be adopted from the handshake
	prefix       string // service-buddy prefix derived from the base URL
	credential   string // serialized access credential; empty until known
	loggedIn     bool
	haveFriends  bool
	loopStarted  bool
	fetching     bool
	gotHome      bool
	gotMentions  bool
	homeItems    []*Item
	mentionItems []*Item
	watermark    uint64
	failures     int
	lastSelfPost uint64
	roster       *Roster
	shortLog     *ShortIdLog // nil unless show_ids
	room         sink.Room   // aggregate-mode timeline room, lazily created
	selfInRoom   bool
	deliver      deliverer
	handshake    *handshake
	friendQueue  []string

	done      chan struct{}
	closeOnce sync.Once
}

// SessionOpts holds parameters for creating a Session.
type SessionOpts struct {
	Config    *config.Config
	Transport transport.Transport
	Sink      sink.Sink
	Registry  *Registry
	Store     *store.Store   // optional; enables credential persistence
	Exchanger TokenExchanger // required for OAuth logins without a stored credential
	Out       io.Writer      // defaults to os.Stdout
}

// NewSession creates a Session. It does not log in.
func NewSession(opts SessionOpts) (*Session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("gateway: config is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("gateway: transport is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("gateway: sink is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	s := &Session{
		cfg:       opts.Config,
		tr:        opts.Transport,
		snk:       opts.Sink,
		st:        opts.Store,
		registry:  opts.Registry,
		exchanger: opts.Exchanger,
		out:       out,
		ctx:       context.Background(),
		user:      opts.Config.Account,
		prefix:    opts.Config.HostPrefix(),
		roster:    NewRoster(),
		done:      make(chan struct{}),
	}
	s.deliver = chooseDeliverer(opts.Config)
	return s, nil
}

// serviceBuddy is the synthetic contact that carries command input and
// login progress, named "<prefix>_<account>".
func (s *Session) serviceBuddy() string {
	return s.prefix + "_" + s.cfg.Account
}

// ServiceBuddy returns the handle of the synthetic command contact.
// Frontends address user input to it via HandleUserMessage.
func (s *Session) ServiceBuddy() string {
	return s.serviceBuddy()
}

// Login registers the session and starts the startup sequence: credential
// handshake (skipped when a derived credential is already known), then
// friend resolution, then the repeating fetch cycle.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry.Contains(s) {
		return fmt.Errorf("gateway: session for %s already logged in", s.cfg.Account)
	}
	s.ctx = ctx
	s.registry.add(s)

	fmt.Fprintf(s.out, "gateway: connecting as %s\n", s.cfg.Account)
	s.snk.Log("Connecting")

	buddy := s.serviceBuddy()
	s.snk.AddContact(buddy, "")
	s.snk.SetPresence(buddy, true)

	if s.cfg.ShowIDs {
		s.shortLog = NewShortIdLog(ShortLogLength)
	}

	// A previously persisted derived credential skips the handshake.
	if strings.Contains(s.cfg.Password, "oauth_token=") {
		s.setCredential(s.cfg.Password)
	}
	if s.st != nil {
		acct, err := s.st.Account(s.cfg.Account, s.cfg.BaseURL)
		if err != nil {
			log.Printf("gateway: load account %s: %v", s.cfg.Account, err)
		} else if strings.Contains(acct.Credential, "oauth_token=") {
			s.setCredential(acct.Credential)
		}
	}

	s.loginFinish()
	return nil
}

// setCredential installs a serialized access credential on the session and
// its transport.
func (s *Session) setCredential(serialized string) {
	s.credential = serialized
	if cs, ok := s.tr.(credentialSetter); ok {
		cs.SetCredential(parseCredentialToken(serialized))
	}
}

// loginFinish advances the startup sequence. It runs after login, after a
// completed handshake, and after the friend roster is resolved; each stage
// is entered at most once.
func (s *Session) loginFinish() {
	s.fetching = false
	switch {
	case s.cfg.OAuth && s.credential == "":
		s.startHandshake()
	case !s.cfg.SingleConversation && !s.haveFriends:
		s.snk.Log("Getting contact list")
		s.fetchFriendIDs(firstCursor)
	default:
		s.startFetchLoop()
	}
}

// startFetchLoop runs the first fetch cycle and schedules the repeating
// loop. Safe to reach more than once; only the first call starts the loop.
func (s *Session) startFetchLoop() {
	if s.loopStarted {
		return
	}
	s.loopStarted = true
	s.snk.Log("Getting initial statuses")
	s.fetchCycleLocked()
	go s.fetchLoop()
}

// fetchLoop fires fetch cycles on the configured interval (or cron
// schedule) until logout.
func (s *Session) fetchLoop() {
	for {
		d := time.Duration(s.cfg.FetchInterval) * time.Second
		if s.cfg.FetchSchedule != "" {
			if c := nextCronDuration(s.cfg.FetchSchedule); c > 0 {
				d = c
			}
		}
		select {
		case <-s.done:
			return
		case <-time.After(d):
		}
		if !s.registry.Contains(s) {
			return
		}
		s.FetchCycle()
	}
}

// Logout removes the session from the registry and releases its resources.
// Outstanding async callbacks become no-ops once this returns.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutLocked()
}

func (s *Session) logoutLocked() {
	if !s.registry.remove(s) {
		return
	}
	s.loggedIn = false
	s.closeOnce.Do(func() { close(s.done) })
	if s.room != nil {
		s.room.Close()
		s.room = nil
	}
	fmt.Fprintf(s.out, "gateway: %s logged out\n", s.cfg.Account)
}

// Done returns a channel closed at logout.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// markConnected flips the session to logged-in exactly once, on the first
// successful fetch.
func (s *Session) markConnected() {
	if s.loggedIn {
		return
	}
	s.loggedIn = true
	s.snk.Log("Logged in")
	fmt.Fprintf(s.out, "gateway: %s logged in\n", s.cfg.Account)
}

// userMsg surfaces command feedback: into the timeline room when one
// exists, otherwise as a plain log line.
func (s *Session) userMsg(msg string) {
	if s.room != nil {
		s.room.Log(msg)
		return
	}
	s.snk.Log(msg)
}

// addContact adds a roster entry and mirrors it to the presentation sink.
// Repeat additions are no-ops apart from display-name updates.
func (s *Session) addContact(handle, displayName string) {
	if handle == "" {
		return
	}
	if c := s.roster.Get(handle); c != nil {
		if displayName != "" && c.DisplayName != displayName {
			c.DisplayName = displayName
			s.snk.RenameContact(handle, displayName)
		}
		return
	}
	s.roster.Add(handle, displayName)
	s.snk.AddContact(handle, displayName)
	if s.cfg.AggregateMode() {
		if s.room != nil {
			s.room.AddMember(handle)
		}
	} else if !s.cfg.SingleConversation {
		s.snk.SetPresence(handle, true)
	}
}

// removeContact drops a roster entry.
func (s *Session) removeContact(handle string) {
	if !s.roster.Has(handle) {
		return
	}
	s.roster.Remove(handle)
	s.snk.SetPresence(handle, false)
}

// initRoom creates the timeline room and joins every known contact.
func (s *Session) initRoom() {
	s.room = s.snk.EnsureRoom(s.prefix + "/timeline")
	s.selfInRoom = false
	for _, c := range s.roster.All() {
		s.room.AddMember(c.Handle)
	}
}

// LeaveRoom handles the user leaving the timeline room. The room is
// recreated, and the user re-joined, when the next items arrive.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return
	}
	s.room.Close()
	s.room = nil
	s.selfInRoom = false
}

// Status returns a snapshot for the dashboard.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		Account:   s.cfg.Account,
		LoggedIn:  s.loggedIn,
		Fetching:  s.fetching,
		Watermark: s.watermark,
		Failures:  s.failures,
		Contacts:  s.roster.Len(),
		Handshake: s.handshakeStateLocked().String(),
	}
}

// post issues a state-mutating call with the shared completion handler.
func (s *Session) post(endpoint string, params transport.Params) {
	if err := s.tr.Do(s.ctx, http.MethodPost, endpoint, params, s.onPostResult); err != nil {
		s.failures++
		s.snk.Error(fmt.Sprintf("Could not send request to %s: connection failed", endpoint))
	}
}

// onPostResult handles completion of any mutating call. On success the
// last self-post id is repopulated from the confirmed status id, so a
// subsequent bare undo targets exactly this action.
func (s *Session) onPostResult(status int, body []byte) {
	if !s.registry.Contains(s) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSelfPost = 0
	if status != 200 {
		s.snk.Error("HTTP error: " + remoteError(status, body))
		return
	}
	s.failures = 0
	if id := parseConfirmedID(body); id != 0 {
		s.lastSelfPost = id
	}
}
