package browser

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/lotas/flowtabs/internal/applog"
	"github.com/lotas/flowtabs/internal/tabs"
)

// Profiles is an in-memory profile and space registry.
type Profiles struct {
	loaded   map[string]bool
	spaces   map[string]tabs.Space
	lastUsed string

	// Loader, when set, runs the first time a profile is loaded.
	Loader func(ctx context.Context, profileID string) error
}

func NewProfiles() *Profiles {
	return &Profiles{
		loaded: make(map[string]bool),
		spaces: make(map[string]tabs.Space),
	}
}

func (p *Profiles) AddProfile(id string) {
	if _, ok := p.loaded[id]; !ok {
		p.loaded[id] = false
	}
}

// AddSpace registers a space of an existing profile. The first space added
// becomes the last used one.
func (p *Profiles) AddSpace(id, profileID string) error {
	if _, ok := p.loaded[profileID]; !ok {
		return fmt.Errorf("space %q: profile %q: %w", id, profileID, tabs.ErrInvalidReference)
	}
	p.spaces[id] = tabs.Space{ID: id, ProfileID: profileID}
	if p.lastUsed == "" {
		p.lastUsed = id
	}
	return nil
}

// UseSpace marks a space as the last used one.
func (p *Profiles) UseSpace(id string) bool {
	if _, ok := p.spaces[id]; !ok {
		return false
	}
	p.lastUsed = id
	return true
}

func (p *Profiles) ResolveProfile(id string) bool {
	_, ok := p.loaded[id]
	return ok
}

// LoadProfile loads a profile once; later calls return immediately.
func (p *Profiles) LoadProfile(ctx context.Context, id string) error {
	done, ok := p.loaded[id]
	if !ok {
		return fmt.Errorf("profile %q: %w", id, tabs.ErrInvalidReference)
	}
	if done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Loader != nil {
		if err := p.Loader(ctx, id); err != nil {
			return err
		}
	}
	p.loaded[id] = true
	applog.Info("profile.loaded", "profile", id)
	return nil
}

func (p *Profiles) Loaded(id string) bool { return p.loaded[id] }

func (p *Profiles) ResolveSpace(id string) (tabs.Space, bool) {
	sp, ok := p.spaces[id]
	return sp, ok
}

func (p *Profiles) LastUsedSpace() (tabs.Space, bool) { return p.ResolveSpace(p.lastUsed) }

// Spaces lists every space ordered by id.
func (p *Profiles) Spaces() []tabs.Space {
	var out []tabs.Space
	for _, id := range slices.Sorted(maps.Keys(p.spaces)) {
		out = append(out, p.spaces[id])
	}
	return out
}
