// Package variants holds the named display durations producers may pick from.
package variants

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"pubcast/internal/display"
)

// ErrUnknownVariant is returned when a label is not in the catalog for its kind.
var ErrUnknownVariant = errors.New("variants: unknown variant")

// Variant is one selectable display duration.
type Variant struct {
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
	// DurationMS mirrors Duration for API consumers.
	DurationMS int64 `json:"duration_ms"`
}

// Catalog is an immutable set of variants per content kind.
type Catalog struct {
	byKind   map[display.Kind][]Variant
	fallback time.Duration
}

// NewCatalog builds a catalog. Variants with an empty label or non-positive duration
// are skipped; duplicate labels keep the first entry. fallback is returned by
// Resolve when a kind has no variants at all.
func NewCatalog(text, image []Variant, fallback time.Duration) *Catalog {
	if fallback <= 0 {
		fallback = display.DefaultDuration
	}
	c := &Catalog{byKind: map[display.Kind][]Variant{}, fallback: fallback}
	c.byKind[display.KindText] = clean(text)
	c.byKind[display.KindImage] = clean(image)
	return c
}

func clean(in []Variant) []Variant {
	out := make([]Variant, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		label := strings.TrimSpace(v.Label)
		if label == "" || v.Duration <= 0 || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, Variant{Label: label, Duration: v.Duration, DurationMS: v.Duration.Milliseconds()})
	}
	return out
}

// List returns the variants offered for kind, in configured order.
func (c *Catalog) List(kind display.Kind) []Variant {
	if c == nil {
		return nil
	}
	vs := c.byKind[kind]
	out := make([]Variant, len(vs))
	copy(out, vs)
	return out
}

// Resolve maps a label to its duration. An empty label selects the first variant.
func (c *Catalog) Resolve(kind display.Kind, label string) (time.Duration, error) {
	if c == nil {
		return display.DefaultDuration, nil
	}
	vs := c.byKind[kind]
	label = strings.TrimSpace(label)
	if len(vs) == 0 {
		if label != "" {
			return 0, fmt.Errorf("%w: %q (no %s variants configured)", ErrUnknownVariant, label, kind)
		}
		return c.fallback, nil
	}
	if label == "" {
		return vs[0].Duration, nil
	}
	for _, v := range vs {
		if v.Label == label {
			return v.Duration, nil
		}
	}
	return 0, fmt.Errorf("%w: %q for %s", ErrUnknownVariant, label, kind)
}

// Store publishes the live catalog; readers never observe a half-applied reload.
type Store struct {
	cur atomic.Pointer[Catalog]
}

func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.Replace(c)
	return s
}

func (s *Store) Load() *Catalog { return s.cur.Load() }

func (s *Store) Replace(c *Catalog) {
	if c == nil {
		c = NewCatalog(nil, nil, 0)
	}
	s.cur.Store(c)
}
