package assistant

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrInvalidTOML indicates a persona file exists but could not be parsed.
var ErrInvalidTOML = errors.New("invalid persona TOML")

// Persona is one voice the assistant can speak in.
type Persona struct {
	Name         string `toml:"name"`
	Role         string `toml:"role"`
	Style        string `toml:"style"`
	SystemPrompt string `toml:"system_prompt"`
}

// Personas is the set of voices used across the compose workflow: named story
// characters plus the fixed editorial voices.
type Personas struct {
	Editor     Persona            `toml:"editor"`
	ToneRater  Persona            `toml:"tone_rater"`
	Characters map[string]Persona `toml:"characters"`
}

// defaultPersonas returns the built-in voices used when no persona file
// overrides them.
func defaultPersonas() *Personas {
	return &Personas{
		Editor: Persona{
			Name:  "editor",
			Role:  "developmental editor",
			Style: "precise, specific, kind but direct",
			SystemPrompt: "You are a developmental editor reviewing a chapter draft. " +
				"Identify concrete, actionable problems. Respond only with a JSON array of objects, " +
				`each with "category" (pacing, tone, continuity, dialogue, clarity), ` +
				`"severity" (minor, major), "excerpt" (the problematic passage, abbreviated), ` +
				`and "suggestion" (how to fix it). Return at most eight reviews.`,
		},
		ToneRater: Persona{
			Name:  "tone-rater",
			Role:  "tone analyst",
			Style: "terse, analytical",
			SystemPrompt: "You assess the emotional tone of prose. Respond only with a JSON object " +
				`with "tone" (one or two words), "confidence" (0.0 to 1.0), and "notes" (one sentence).`,
		},
		Characters: map[string]Persona{},
	}
}

// LoadPersonas returns the built-in personas merged with overrides from a
// TOML file. A missing file is fine; an unreadable or invalid one is an
// error.
func LoadPersonas(path string) (*Personas, error) {
	personas := defaultPersonas()
	if path == "" {
		return personas, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return personas, nil
		}
		return nil, fmt.Errorf("stat persona file: %w", err)
	}

	var file Personas
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	if file.Editor.SystemPrompt != "" {
		personas.Editor = file.Editor
	}
	if file.ToneRater.SystemPrompt != "" {
		personas.ToneRater = file.ToneRater
	}
	for name, p := range file.Characters {
		if p.Name == "" {
			p.Name = name
		}
		personas.Characters[name] = p
	}
	return personas, nil
}

// Character returns the persona for a named story character, falling back to
// a generic in-character voice when no persona file defines one.
func (p *Personas) Character(name string) Persona {
	if persona, ok := p.Characters[name]; ok {
		return persona
	}
	return Persona{
		Name: name,
		Role: "story character",
		SystemPrompt: fmt.Sprintf("You are %s, a character in the story being written. "+
			"Stay in character, speak in first person, and keep replies under 150 words. "+
			"Never mention that you are fictional or part of a writing exercise.", name),
	}
}
