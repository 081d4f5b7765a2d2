package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shieldline/internal/config"
	"shieldline/internal/logger"
	"shieldline/internal/model"
	"shieldline/internal/publishers"
	"shieldline/internal/subscription"
	"shieldline/internal/syncapi"

	"github.com/google/uuid"
)

func (s *Service) syncClient() *syncapi.Client {
	settings := s.state.Settings()
	return syncapi.New(settings.ServerURL, settings.AuthToken)
}

// Login stores the token returned by the server in the settings.
func (s *Service) Login(ctx context.Context, username, password string) error {
	token, err := s.syncClient().Login(ctx, username, password)
	if err != nil {
		return err
	}
	_, err = s.state.UpdateSettings(func(st *model.Settings) bool {
		st.AuthToken = token
		return true
	})
	return err
}

// Register creates the account and keeps the token when the server hands
// one out.
func (s *Service) Register(ctx context.Context, username, password string) error {
	token, err := s.syncClient().Register(ctx, username, password)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	_, err = s.state.UpdateSettings(func(st *model.Settings) bool {
		st.AuthToken = token
		return true
	})
	return err
}

// Push uploads the local profiles. The pending flag records whether the
// server copy is behind.
func (s *Service) Push(ctx context.Context) error {
	pushErr := s.syncClient().PushProfiles(ctx, s.state.Profiles())

	_, err := s.state.UpdateSettings(func(st *model.Settings) bool {
		pending := pushErr != nil
		if st.PendingUpload == pending {
			return false
		}
		st.PendingUpload = pending
		return true
	})
	if err != nil {
		logger.Log.Warnf("Failed to save settings: %v", err)
	}
	return pushErr
}

// Pull replaces the local profiles with the server copy.
func (s *Service) Pull(ctx context.Context) (int, error) {
	remote, err := s.syncClient().PullProfiles(ctx)
	if err != nil {
		return 0, err
	}
	profiles, err := mergeIdentity(remote, s.cfg.Sync.Identity)
	if err != nil {
		return 0, err
	}
	if err := s.state.ReplaceProfiles(profiles); err != nil {
		return 0, err
	}
	return len(profiles), nil
}

// ErrIdentityConflict is returned by Pull when the server id and the
// embedded id of a profile differ and sync.identity is unset.
var ErrIdentityConflict = errors.New("profile id conflict")

// mergeIdentity picks one id per pulled profile according to policy and
// normalises the fields a server may leave out.
func mergeIdentity(remote []syncapi.RemoteProfile, policy string) ([]model.Profile, error) {
	seen := make(map[string]bool, len(remote))
	out := make([]model.Profile, 0, len(remote))

	for _, r := range remote {
		p := r.Profile
		p.ConfigLink = strings.TrimSpace(p.ConfigLink)
		p.Protocol = model.ProtocolFromLink(p.ConfigLink)
		if p.Server == "" {
			p.Server = "Auto"
		}
		if p.Upload == nil {
			var v int64
			p.Upload = &v
		}
		if p.Download == nil {
			var v int64
			p.Download = &v
		}

		if r.ID != "" && p.ID != "" && r.ID != p.ID {
			if policy == "" {
				return nil, fmt.Errorf("%w: %q has server id %s and embedded id %s; set sync.identity to %q or %q",
					ErrIdentityConflict, p.Name, r.ID, p.ID, config.IdentityServer, config.IdentityEmbedded)
			}
			logger.Log.Warnf("Profile %q: server id %s differs from embedded id %s, keeping %s id", p.Name, r.ID, p.ID, policy)
		}
		switch policy {
		case config.IdentityEmbedded:
			if p.ID == "" {
				p.ID = r.ID
			}
		default:
			if r.ID != "" {
				p.ID = r.ID
			}
		}
		if p.ID == "" || seen[p.ID] {
			p.ID = uuid.NewString()
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// Export renders the profiles as a subscription and hands it to the named
// publisher.
func (s *Service) Export(ctx context.Context, publisher string) error {
	profiles := s.state.Profiles()
	if len(profiles) == 0 {
		return ErrNoProfiles
	}
	pub, err := publishers.Get(publisher, s.cfg.Export)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, subscription.Encode(profiles, s.cfg.Export.Base64))
}
