package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"shieldline/internal/config"
	"shieldline/internal/db"
	"shieldline/internal/logger"
	"shieldline/internal/model"
	"shieldline/internal/resolve"
	"shieldline/internal/singbox"
	"shieldline/internal/singbox/parser"
	"shieldline/internal/store"
	"shieldline/internal/subscription"
	"shieldline/internal/supervisor"
	"shieldline/internal/tailer"
)

var (
	ErrNoProfiles      = errors.New("no profiles")
	ErrProfileNotFound = errors.New("profile not found")
)

type Options struct {
	Platform supervisor.Platform
	// Journal is optional; without it engines are not tracked across runs.
	Journal  *db.Journal
	Resolver *resolve.Resolver
}

// Service is the command surface shared by every front end.
type Service struct {
	cfg      *config.Config
	state    *store.State
	sup      *supervisor.Supervisor
	journal  *db.Journal
	resolver *resolve.Resolver
	fetcher  *subscription.Fetcher
}

func New(cfg *config.Config, opts Options) (*Service, error) {
	platform := opts.Platform
	if platform == nil {
		platform = supervisor.DefaultPlatform()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = resolve.Default
	}

	s := &Service{
		cfg: cfg,
		state: store.Open(store.Files{
			ProfilesPath: cfg.ProfilesPath(),
			SettingsPath: cfg.SettingsPath(),
		}),
		sup:      supervisor.New(platform),
		journal:  opts.Journal,
		resolver: resolver,
		fetcher: subscription.NewFetcher(subscription.Options{
			Timeout:   cfg.Subscription.Timeout,
			Proxy:     cfg.Subscription.Proxy,
			UserAgent: cfg.Subscription.UserAgent,
		}),
	}
	s.sup.OnExit = s.onEngineExit

	if err := s.adoptOpenSession(); err != nil {
		return nil, err
	}
	return s, nil
}

// adoptOpenSession treats an open journal entry as an engine left running
// by an earlier invocation.
func (s *Service) adoptOpenSession() error {
	if s.journal == nil {
		return nil
	}
	rec, err := s.journal.Active()
	if err != nil {
		return fmt.Errorf("failed to read session journal: %w", err)
	}
	if rec == nil {
		return nil
	}
	logger.Log.Debugf("Adopting session %d (%s) started %s", rec.ID, rec.ProfileName, rec.StartedAt.Format("2006-01-02 15:04:05"))
	return s.sup.Adopt(s.cfg.Engine.ProcessName)
}

func (s *Service) Config() *config.Config { return s.cfg }

func (s *Service) Profiles() []model.Profile {
	return s.state.Profiles()
}

// AddProfile stores a manually entered link. An empty name is taken from
// the link fragment.
func (s *Service) AddProfile(name, link string) (model.Profile, error) {
	link = parser.FixIllegalUrl(link)
	if model.ProtocolFromLink(link) == model.ProtocolUnknown {
		scheme := link
		if i := strings.Index(link, "://"); i >= 0 {
			scheme = link[:i]
		}
		return model.Profile{}, fmt.Errorf("%w: %s", parser.ErrUnsupportedProtocol, scheme)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = parser.NameFromLink(link)
	}

	p := model.NewProfile(name, link)
	if err := s.state.AddProfile(p); err != nil {
		return model.Profile{}, err
	}
	s.markPending()
	return p, nil
}

func (s *Service) DeleteProfile(id string) error {
	removed, err := s.state.DeleteProfile(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	s.markPending()
	return nil
}

// ImportSubscription fetches a subscription and appends its profiles.
func (s *Service) ImportSubscription(ctx context.Context, rawURL string) ([]model.Profile, error) {
	profiles, err := s.fetcher.Import(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := s.state.AppendProfiles(profiles); err != nil {
		return nil, err
	}
	s.markPending()
	logger.Log.Infof("Imported %d profiles from %s", len(profiles), rawURL)
	return profiles, nil
}

// UpdateUsage adds traffic to a profile's counters.
func (s *Service) UpdateUsage(id string, up, down int64) error {
	found, err := s.state.UpdateUsage(id, up, down)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// EngineConfig builds the engine document for the first profile without
// launching anything.
func (s *Service) EngineConfig(ctx context.Context) (*singbox.Config, model.Profile, error) {
	p, ok := s.state.First()
	if !ok {
		return nil, model.Profile{}, ErrNoProfiles
	}
	settings := s.state.Settings()

	pr := &parser.Parser{Settings: settings, Resolver: s.resolver}
	out, err := pr.Parse(ctx, p.ConfigLink)
	if err != nil {
		return nil, p, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return singbox.Synthesize(out, settings, singbox.Options{LogLevel: s.cfg.Engine.LogLevel}), p, nil
}

// StartEngine launches the engine for the first stored profile.
func (s *Service) StartEngine(ctx context.Context) (model.Profile, error) {
	if s.sup.Running() {
		return model.Profile{}, supervisor.ErrAlreadyRunning
	}
	doc, p, err := s.EngineConfig(ctx)
	if err != nil {
		return p, err
	}

	// The record exists before launch so an early exit has one to close.
	if s.journal != nil {
		if _, err := s.journal.Open(p, s.cfg.EngineConfigPath()); err != nil {
			logger.Log.Warnf("Failed to record session: %v", err)
		}
	}
	err = s.sup.Start(ctx, supervisor.Plan{
		Binary:       s.cfg.Engine.Binary,
		ProcessName:  s.cfg.Engine.ProcessName,
		ConfigPath:   s.cfg.EngineConfigPath(),
		LogPath:      s.cfg.LogPath(),
		Config:       doc,
		TailInterval: s.cfg.Engine.TailInterval,
		Grace:        s.cfg.Engine.StartGrace,
	})
	if err != nil {
		s.closeSessions("launch failed: " + err.Error())
		return p, err
	}
	logger.Log.Infof("Connected with %s (%s)", p.Name, p.Protocol)
	return p, nil
}

func (s *Service) StopEngine(ctx context.Context) error {
	if err := s.sup.Stop(ctx); err != nil {
		return err
	}
	s.closeSessions("stopped")
	return nil
}

func (s *Service) onEngineExit(err error) {
	reason := "exited"
	if err != nil {
		reason = "exited: " + err.Error()
	}
	s.closeSessions(reason)
}

func (s *Service) closeSessions(reason string) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.CloseActive(reason); err != nil {
		logger.Log.Warnf("Failed to close session record: %v", err)
	}
}

func (s *Service) Running() bool { return s.sup.Running() }

func (s *Service) Events() <-chan tailer.Batch { return s.sup.Events() }

func (s *Service) Sessions(limit int) ([]model.SessionRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(limit)
}

func (s *Service) Settings() model.Settings { return s.state.Settings() }

func (s *Service) SaveSettings(next model.Settings) error {
	return s.state.SaveSettings(next)
}

func (s *Service) LogDir() string  { return s.cfg.Paths.LogDir }
func (s *Service) LogPath() string { return s.cfg.LogPath() }

// ServerAddress resolves the host of a profile's link.
func (s *Service) ServerAddress(ctx context.Context, p model.Profile) (string, error) {
	u, err := url.Parse(parser.FixIllegalUrl(p.ConfigLink))
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", parser.ErrMissingHost
	}
	return s.resolver.Resolve(ctx, host), nil
}

// markPending flags local changes for the next push when an account is
// linked.
func (s *Service) markPending() {
	_, err := s.state.UpdateSettings(func(st *model.Settings) bool {
		if st.AuthToken == "" || st.PendingUpload {
			return false
		}
		st.PendingUpload = true
		return true
	})
	if err != nil {
		logger.Log.Warnf("Failed to save settings: %v", err)
	}
}
