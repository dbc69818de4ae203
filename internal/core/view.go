package core

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/ijt/xylem/internal/types"
)

// View is the merged set of definitions visible under one name.
type View struct {
	Name string
	defs map[string]*Definition
}

func NewView(name string) *View {
	return &View{Name: name, defs: map[string]*Definition{}}
}

func (v *View) Lookup(key string) (*Definition, bool) {
	def, ok := v.defs[key]
	return def, ok
}

func (v *View) Keys() []string {
	keys := make([]string, 0, len(v.defs))
	for key := range v.defs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Merge adds the rules of entry.  The first source to declare a key wins,
// in the manner of an apt sources list; override makes entry win instead.
// Rules are never combined.
func (v *View) Merge(ctx context.Context, entry types.SourceEntry, override bool) {
	log.Ctx(ctx).Debug().Str("view", v.Name).Str("origin", entry.Origin).Msg("merging source into view")
	for key, data := range entry.Rules {
		if _, exists := v.defs[key]; exists && !override {
			log.Ctx(ctx).Debug().
				Str("key", key).
				Str("origin", entry.Origin).
				Msg("ignoring key, already declared")
			continue
		}
		v.defs[key] = NewDefinition(key, data, entry.Origin)
	}
}
