// Package application owns the authenticated session: login, manifest
// lifecycle, command dispatch with outcome classification, persistence,
// and the download engine.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/galah-project/galah-cli/internal/adapters/galahapi"
	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/manifest"
	"github.com/galah-project/galah-cli/internal/ports"
)

const manifestCommand = "get_api_info"

// Session holds the authenticated state of one client process: identity,
// credential material (owned exclusively by the session via its API
// client's cookie jar), and the parsed manifest with its verbatim raw
// bytes. At most one operation of a given kind runs at a time; concurrent
// logins or manifest fetches collapse into a single flight.
type Session struct {
	api    *galahapi.Client
	store  ports.StateStore
	clock  ports.Clock
	logger *slog.Logger

	mu          sync.Mutex
	identity    string
	manifest    manifest.Manifest
	manifestRaw []byte
	dirty       bool

	flight singleflight.Group
}

func NewSession(api *galahapi.Client, store ports.StateStore, clock ports.Clock, logger *slog.Logger) *Session {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		api:    api,
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Identity returns the authenticated user, or "" when unauthenticated.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Authenticated() bool { return s.Identity() != "" }

// HasManifest reports whether a manifest is loaded.
func (s *Session) HasManifest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest != nil
}

// Commands returns the loaded command definitions keyed by name.
func (s *Session) Commands() manifest.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

// Dirty reports whether in-memory state has diverged from the persisted
// state since the last Save or Load.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Login authenticates with the server. On an application-level rejection
// it fails with domain.ErrAuthentication and leaves identity and
// credential material untouched; on success both are set together.
func (s *Session) Login(ctx context.Context, email, password string) error {
	_, err, _ := s.flight.Do("login", func() (any, error) {
		if err := s.api.Login(ctx, email, password); err != nil {
			s.api.ClearCookies()
			return nil, err
		}

		s.mu.Lock()
		s.identity = email
		s.dirty = true
		s.mu.Unlock()

		s.logger.Info("logged in", "user", email)
		return nil, nil
	})
	return err
}

// LoginExternal exchanges an externally obtained access token for server
// credentials through two hops: the provider's token-info endpoint (which
// reports the token's identity) and then the server's login endpoint.
// Atomicity matches Login: nothing is retained on failure.
func (s *Session) LoginExternal(ctx context.Context, tokenInfoURL, accessToken string) error {
	_, err, _ := s.flight.Do("login", func() (any, error) {
		email, err := s.api.VerifyExternalToken(ctx, tokenInfoURL, accessToken)
		if err != nil {
			return nil, err
		}

		if err := s.api.LoginWithToken(ctx, accessToken); err != nil {
			s.api.ClearCookies()
			return nil, err
		}

		s.mu.Lock()
		s.identity = email
		s.dirty = true
		s.mu.Unlock()

		s.logger.Info("logged in", "user", email, "method", "oauth")
		return nil, nil
	})
	return err
}

// FetchManifest asks the server for its current command manifest and
// replaces the session's copy. Raw bytes and the parsed manifest are set
// together; on any failure the previous manifest is left untouched.
// Concurrent calls collapse into one request.
func (s *Session) FetchManifest(ctx context.Context) error {
	_, err, _ := s.flight.Do("manifest", func() (any, error) {
		s.logger.Info("fetching manifest")

		resp, err := s.api.Call(ctx, map[string]string{"api_name": manifestCommand}, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &domain.ServerError{Status: resp.StatusCode}
		}

		raw := []byte(resp.Body)
		parsed, err := manifest.Parse(raw)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.manifestRaw = raw
		s.manifest = parsed
		s.dirty = true
		s.mu.Unlock()

		s.logger.Debug("manifest loaded", "commands", len(parsed))
		return nil, nil
	})
	return err
}

// Call resolves the invocation against the manifest, dispatches exactly
// one request, and classifies the response. File-kind parameters make the
// dispatch a streamed multipart upload. The returned outcome is either a
// TextResult or a DownloadReady; failures arrive as typed errors.
func (s *Session) Call(ctx context.Context, command string, positional []string, keyword map[string]string) (domain.Outcome, error) {
	s.mu.Lock()
	def, known := s.manifest[command]
	identity := s.identity
	s.mu.Unlock()

	if !known {
		return nil, &domain.UnknownCommandError{Command: command}
	}

	bound, err := def.Resolve(positional, keyword)
	if err != nil {
		return nil, &domain.InvocationError{Command: command, Usage: def.Usage(), Err: err}
	}

	fields := make(map[string]string, len(bound)+1)
	for name, value := range bound {
		fields[name] = value
	}
	fields["api_name"] = command

	files := make(map[string]string)
	for _, name := range def.FileParams() {
		files[name] = fields[name]
		delete(fields, name)
	}

	s.logger.Info("executing command", "command", command, "user", identity)

	resp, err := s.api.Call(ctx, fields, files)
	if err != nil {
		return nil, err
	}

	return s.classify(resp)
}

// classify maps a raw call response onto exactly one outcome of the
// protocol: permission denied, application error, server error, download
// ready, or plain text.
func (s *Session) classify(resp *galahapi.CallResponse) (domain.Outcome, error) {
	success, present := resp.Success()

	switch {
	case present && !success:
		if resp.ErrorType() == "PermissionError" {
			s.logger.Info("server response", "body", resp.Body)
			return nil, &domain.PermissionDeniedError{Message: resp.Body}
		}
		return nil, &domain.ApplicationError{Message: resp.Body}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &domain.ServerError{Status: resp.StatusCode}
	case !present:
		// The protocol guarantees X-CallSuccess on every call response.
		return nil, fmt.Errorf("response missing %s header", galahapi.HeaderCallSuccess)
	}

	if ref, name, ok := resp.Download(); ok {
		if name == "" {
			name = "downloaded_file"
		}
		resolved, err := s.api.Resolve(ref)
		if err != nil {
			return nil, err
		}
		return domain.DownloadReady{URL: resolved, SuggestedName: name}, nil
	}

	return domain.TextResult{Body: resp.Body}, nil
}

// Save persists identity, credential material, and the raw manifest
// bytes. Errors are returned, never swallowed; the caller decides whether
// they are fatal (strict-save policy).
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	identity := s.identity
	raw := s.manifestRaw
	s.mu.Unlock()

	if identity != "" {
		state := domain.SessionState{
			Identity: identity,
			Cookies:  s.api.Cookies(),
		}
		if err := s.store.SaveSession(ctx, state); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	if len(raw) > 0 {
		if err := s.store.SaveManifest(ctx, raw); err != nil {
			return fmt.Errorf("save manifest cache: %w", err)
		}
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Load restores persisted state. Absent files yield an empty session; a
// present-but-corrupt session file is a hard StateError so the user can
// clear it deliberately rather than silently re-authenticating.
func (s *Session) Load(ctx context.Context) error {
	state, ok, err := s.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session (clear it with 'galah logout' if corrupt): %w", err)
	}
	if ok {
		s.api.SetCookies(state.Cookies)
		s.mu.Lock()
		s.identity = state.Identity
		s.mu.Unlock()
		s.logger.Debug("session restored", "user", state.Identity)
	}

	raw, ok, err := s.store.LoadManifest(ctx)
	if err != nil {
		return fmt.Errorf("load manifest cache: %w", err)
	}
	if ok {
		parsed, err := manifest.Parse(raw)
		if err != nil {
			return fmt.Errorf("cached manifest (clear it with 'galah manifest clear'): %w", err)
		}
		s.mu.Lock()
		s.manifestRaw = raw
		s.manifest = parsed
		s.mu.Unlock()
		s.logger.Debug("manifest cache restored", "commands", len(parsed))
	}

	return nil
}

// Logout forgets the authenticated session, in memory and on disk.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.ClearSession(ctx); err != nil {
		return err
	}
	s.api.ClearCookies()
	s.mu.Lock()
	s.identity = ""
	s.mu.Unlock()
	return nil
}

// ClearManifest forgets the cached manifest, in memory and on disk.
func (s *Session) ClearManifest(ctx context.Context) error {
	if err := s.store.ClearManifest(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.manifest = nil
	s.manifestRaw = nil
	s.mu.Unlock()
	return nil
}
