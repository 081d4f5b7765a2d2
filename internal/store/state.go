package store

import (
	"sync"

	"shieldline/internal/model"
)

// State is the shared application state. Profiles and settings each have
// their own lock. Mutators copy a snapshot under the lock and write it to
// disk after releasing it; a per-record version keeps an older snapshot from
// overwriting a newer one. A failed write restores the previous record
// unless a later mutation has replaced it.
type State struct {
	files Files

	profilesMu      sync.Mutex
	profiles        []model.Profile
	profilesVersion uint64

	settingsMu      sync.Mutex
	settings        model.Settings
	settingsVersion uint64

	profilesWrite versionedWriter
	settingsWrite versionedWriter
}

type versionedWriter struct {
	mu      sync.Mutex
	written uint64
}

// write runs save unless a newer version has already been written.
func (w *versionedWriter) write(version uint64, save func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if version <= w.written {
		return nil
	}
	if err := save(); err != nil {
		return err
	}
	w.written = version
	return nil
}

// Open loads both records from disk.
func Open(files Files) *State {
	return &State{
		files:    files,
		profiles: files.LoadProfiles(),
		settings: files.LoadSettings(),
	}
}

func (s *State) Profiles() []model.Profile {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()
	return cloneProfiles(s.profiles)
}

// First returns the first stored profile.
func (s *State) First() (model.Profile, bool) {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()
	if len(s.profiles) == 0 {
		return model.Profile{}, false
	}
	return cloneProfile(s.profiles[0]), true
}

// Find returns the profile with the given id.
func (s *State) Find(id string) (model.Profile, bool) {
	s.profilesMu.Lock()
	defer s.profilesMu.Unlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return cloneProfile(p), true
		}
	}
	return model.Profile{}, false
}

func (s *State) AddProfile(p model.Profile) error {
	return s.AppendProfiles([]model.Profile{p})
}

// AppendProfiles adds profiles to the end of the list and persists it.
func (s *State) AppendProfiles(ps []model.Profile) error {
	return s.mutateProfiles(func(cur []model.Profile) ([]model.Profile, bool) {
		return append(cur, cloneProfiles(ps)...), len(ps) > 0
	})
}

// DeleteProfile removes the profile with the given id. It reports whether a
// profile was removed.
func (s *State) DeleteProfile(id string) (bool, error) {
	removed := false
	err := s.mutateProfiles(func(cur []model.Profile) ([]model.Profile, bool) {
		out := cur[:0]
		for _, p := range cur {
			if p.ID == id {
				removed = true
				continue
			}
			out = append(out, p)
		}
		return out, removed
	})
	return removed, err
}

// ReplaceProfiles swaps the whole list.
func (s *State) ReplaceProfiles(ps []model.Profile) error {
	return s.mutateProfiles(func([]model.Profile) ([]model.Profile, bool) {
		return cloneProfiles(ps), true
	})
}

// UpdateUsage adds traffic to a profile's counters.
func (s *State) UpdateUsage(id string, up, down int64) (bool, error) {
	found := false
	err := s.mutateProfiles(func(cur []model.Profile) ([]model.Profile, bool) {
		for i := range cur {
			if cur[i].ID != id {
				continue
			}
			u := cur[i].UploadBytes() + up
			d := cur[i].DownloadBytes() + down
			cur[i].Upload = &u
			cur[i].Download = &d
			found = true
			break
		}
		return cur, found
	})
	return found, err
}

func (s *State) mutateProfiles(fn func([]model.Profile) ([]model.Profile, bool)) error {
	s.profilesMu.Lock()
	prev := s.profiles
	next, changed := fn(cloneProfiles(prev))
	if !changed {
		s.profilesMu.Unlock()
		return nil
	}
	s.profiles = next
	s.profilesVersion++
	version := s.profilesVersion
	snapshot := cloneProfiles(next)
	s.profilesMu.Unlock()

	err := s.profilesWrite.write(version, func() error {
		return s.files.SaveProfiles(snapshot)
	})
	if err != nil {
		s.profilesMu.Lock()
		if s.profilesVersion == version {
			s.profiles = prev
		}
		s.profilesMu.Unlock()
	}
	return err
}

func (s *State) Settings() model.Settings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings
}

// SaveSettings overwrites the settings record wholesale.
func (s *State) SaveSettings(next model.Settings) error {
	s.settingsMu.Lock()
	prev := s.settings
	s.settings = next
	s.settingsVersion++
	version := s.settingsVersion
	s.settingsMu.Unlock()

	return s.persistSettings(version, prev, next)
}

// UpdateSettings applies fn to the settings under the lock and persists the
// result when fn reports a change.
func (s *State) UpdateSettings(fn func(*model.Settings) bool) (model.Settings, error) {
	s.settingsMu.Lock()
	prev := s.settings
	next := prev
	if !fn(&next) {
		s.settingsMu.Unlock()
		return next, nil
	}
	s.settings = next
	s.settingsVersion++
	version := s.settingsVersion
	s.settingsMu.Unlock()

	if err := s.persistSettings(version, prev, next); err != nil {
		return prev, err
	}
	return next, nil
}

func (s *State) persistSettings(version uint64, prev, next model.Settings) error {
	err := s.settingsWrite.write(version, func() error {
		return s.files.SaveSettings(next)
	})
	if err != nil {
		s.settingsMu.Lock()
		if s.settingsVersion == version {
			s.settings = prev
		}
		s.settingsMu.Unlock()
	}
	return err
}

func cloneProfiles(ps []model.Profile) []model.Profile {
	out := make([]model.Profile, len(ps))
	for i, p := range ps {
		out[i] = cloneProfile(p)
	}
	return out
}

// cloneProfile detaches the counter pointers from the stored record.
func cloneProfile(p model.Profile) model.Profile {
	if p.Upload != nil {
		v := *p.Upload
		p.Upload = &v
	}
	if p.Download != nil {
		v := *p.Download
		p.Download = &v
	}
	return p
}
