// Package persona loads the agent's spoken-line manifest: the system prompt
// driving the dialogue engine plus every canned line and filler clip the call
// flow can play without a generation round trip.
package persona

import (
	"embed"
	"fmt"
	"math/rand"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Persona is the deserialized manifest for one agent voice.
type Persona struct {
	Name         string   `yaml:"name"`
	Company      string   `yaml:"company"`
	SystemPrompt string   `yaml:"system_prompt"`
	OpeningLine  string   `yaml:"opening_line"`
	RepeatPrompt string   `yaml:"repeat_prompt"`
	ApologyLine  string   `yaml:"apology_line"`
	GoodbyeLine  string   `yaml:"goodbye_line"`
	PostHint     string   `yaml:"post_hint"`
	FillerClips  []string `yaml:"filler_clips"`
}

// Validate checks that every line the call flow depends on is present.
// A missing canned line would otherwise surface mid-call as dead air.
func (p *Persona) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.SystemPrompt, validation.Required),
		validation.Field(&p.OpeningLine, validation.Required),
		validation.Field(&p.RepeatPrompt, validation.Required),
		validation.Field(&p.ApologyLine, validation.Required),
		validation.Field(&p.GoodbyeLine, validation.Required),
		validation.Field(&p.FillerClips, validation.Required, validation.Length(1, 0)),
	)
}

// Registry holds loaded personas keyed by manifest name.
type Registry struct {
	personas map[string]*Persona
	mu       sync.RWMutex
}

// NewRegistry loads the embedded persona manifests.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		personas: make(map[string]*Persona),
	}

	if err := r.loadManifest("dispatcher"); err != nil {
		return nil, fmt.Errorf("failed to load dispatcher persona: %w", err)
	}

	return r, nil
}

// loadManifest loads one embedded persona YAML file.
func (r *Registry) loadManifest(name string) error {
	filename := fmt.Sprintf("config/%s.yaml", name)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid persona %s: %w", filename, err)
	}

	r.mu.Lock()
	r.personas[name] = &p
	r.mu.Unlock()

	return nil
}

// Get returns a persona by manifest name.
func (r *Registry) Get(name string) (*Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[name]
	if !ok {
		return nil, fmt.Errorf("unknown persona: %s", name)
	}
	return p, nil
}

// Default returns the dispatcher persona.
func (r *Registry) Default() *Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.personas["dispatcher"]
}

// RandomFiller picks one filler clip filename. The choice is cosmetic
// latency masking and is never recorded in conversation history.
func (p *Persona) RandomFiller() string {
	return p.FillerClips[rand.Intn(len(p.FillerClips))]
}
