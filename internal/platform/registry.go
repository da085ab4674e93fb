// Package platform holds the registry of supported platforms. Each platform
// package registers itself from init; the binary selects one by name with
// PLATFORM.
package platform

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"media-resolver-go/internal/config"
	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/extract"
	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/normalize"
	"media-resolver-go/internal/parser"
	"media-resolver-go/internal/source"
)

// Deps are the shared components a platform builds its sources on.
type Deps struct {
	Config   config.Config
	Fetcher  fetcher.Doer
	Parser   *parser.Parser
	Debugger *debugger.Debugger
}

// Platform is everything the pipeline needs to resolve links for one site.
type Platform struct {
	Name      string
	Rules     normalize.Rules
	Extractor *extract.Extractor
	// ExpandHeaders are sent when following short links.
	ExpandHeaders map[string]string
	Sources       []source.Config
}

type Factory func(Deps) Platform

type Registration struct {
	Name    string
	Aliases []string
	Factory Factory
}

// Registry maps platform names and aliases, case-insensitively, to their
// factories.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Registration
	names []string
}

func NewRegistry() *Registry {
	return &Registry{byKey: map[string]Registration{}}
}

func (r *Registry) Register(reg Registration) error {
	reg.Name = foldName(reg.Name)
	if reg.Name == "" {
		return errors.New("platform name is empty")
	}
	if reg.Factory == nil {
		return fmt.Errorf("platform %s: factory is nil", reg.Name)
	}
	keys := []string{reg.Name}
	for _, a := range reg.Aliases {
		if a = foldName(a); a != "" && !slices.Contains(keys, a) {
			keys = append(keys, a)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if prev, ok := r.byKey[k]; ok {
			return fmt.Errorf("platform %s: %q already taken by %s", reg.Name, k, prev.Name)
		}
	}
	reg.Aliases = keys[1:]
	for _, k := range keys {
		r.byKey[k] = reg
	}
	r.names = append(r.names, reg.Name)
	slices.Sort(r.names)
	return nil
}

func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byKey[foldName(name)]
	return reg, ok
}

// Build runs the factory registered under name and checks the result is
// usable by the pipeline.
func (r *Registry) Build(name string, deps Deps) (Platform, error) {
	reg, ok := r.Lookup(name)
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform: %s (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	p := reg.Factory(deps)
	if p.Name == "" {
		p.Name = reg.Name
	}
	switch {
	case p.Extractor == nil:
		return Platform{}, fmt.Errorf("platform %s: no id extractor", p.Name)
	case len(p.Sources) == 0:
		return Platform{}, fmt.Errorf("platform %s: no sources", p.Name)
	}
	return p, nil
}

// Names lists canonical platform names, without aliases.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var builtin = NewRegistry()

// Register adds a platform to the built-in registry and panics on a name
// clash, which can only come from a programming error at init time.
func Register(name string, aliases []string, factory Factory) {
	if err := builtin.Register(Registration{Name: name, Aliases: aliases, Factory: factory}); err != nil {
		panic(err)
	}
}

func New(name string, deps Deps) (Platform, error) {
	return builtin.Build(name, deps)
}

func Names() []string {
	return builtin.Names()
}
