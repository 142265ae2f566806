package clip

import (
	"fmt"
	"sort"
)

// Library maps clip names to clips.
type Library struct {
	clips map[string]*Clip
}

func NewLibrary() *Library {
	return &Library{clips: make(map[string]*Clip)}
}

// Add registers c under its name. Names are unique.
func (l *Library) Add(c *Clip) error {
	if _, ok := l.clips[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, c.Name)
	}
	l.clips[c.Name] = c
	return nil
}

// Clip returns the named clip.
func (l *Library) Clip(name string) (*Clip, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	c, ok := l.clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c, nil
}

func (l *Library) Names() []string {
	out := make([]string, 0, len(l.clips))
	for name := range l.clips {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
