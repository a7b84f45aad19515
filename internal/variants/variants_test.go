package variants

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubcast/internal/display"
)

func sample() *Catalog {
	return NewCatalog(
		[]Variant{{Label: "short", Duration: 5 * time.Second}, {Label: "long", Duration: 30 * time.Second}},
		[]Variant{{Label: "photo", Duration: 15 * time.Second}},
		0,
	)
}

func TestResolve(t *testing.T) {
	c := sample()

	d, err := c.Resolve(display.KindText, "")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d, "empty label selects the first variant")

	d, err = c.Resolve(display.KindText, "long")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = c.Resolve(display.KindImage, " photo ")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)

	_, err = c.Resolve(display.KindImage, "long")
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestEmptyCatalogFallsBack(t *testing.T) {
	c := NewCatalog(nil, nil, 7*time.Second)
	d, err := c.Resolve(display.KindText, "")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, d)

	_, err = c.Resolve(display.KindText, "x")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestCleanSkipsInvalidAndDuplicates(t *testing.T) {
	c := NewCatalog([]Variant{
		{Label: "", Duration: time.Second},
		{Label: "a", Duration: 0},
		{Label: "b", Duration: 2 * time.Second},
		{Label: "b", Duration: 9 * time.Second},
	}, nil, 0)
	got := c.List(display.KindText)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Label)
	assert.Equal(t, int64(2000), got[0].DurationMS)
}

func TestStoreReplace(t *testing.T) {
	s := NewStore(sample())
	before := s.Load()
	s.Replace(NewCatalog([]Variant{{Label: "x", Duration: time.Second}}, nil, 0))

	d, err := s.Load().Resolve(display.KindText, "")
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	// Old catalog values stay intact for readers holding them.
	d, err = before.Resolve(display.KindText, "")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	s.Replace(nil)
	assert.Empty(t, s.Load().List(display.KindText))
}
