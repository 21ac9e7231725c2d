package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := Newf("something broke").Build()
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "something broke", ee.Error())
}

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("fit did not converge after %d evaluations", 500).
		Component("occupancy").
		Category(CategoryModelConvergence).
		Context("evaluations", 500).
		Build()

	assert.Equal(t, "occupancy", ee.Component)
	assert.Equal(t, CategoryModelConvergence, ee.Category)
	assert.Equal(t, 500, ee.GetContext()["evaluations"])
	assert.False(t, ee.Timestamp.IsZero())
}

func TestUnwrapChain(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("bad input")
	wrapped := New(fmt.Errorf("reading records: %w", sentinel)).
		Category(CategoryDataIntegrity).
		Build()

	require.ErrorIs(t, wrapped, sentinel)
	assert.True(t, HasCategory(wrapped, CategoryDataIntegrity))
	assert.False(t, HasCategory(wrapped, CategoryDatabase))
}

func TestHasCategoryNested(t *testing.T) {
	t.Parallel()

	inner := Newf("no records for site").Category(CategoryDataIntegrity).Build()
	outer := fmt.Errorf("building detection history: %w", inner)

	assert.True(t, HasCategory(outer, CategoryDataIntegrity))
	assert.False(t, HasCategory(NewStd("plain"), CategoryDataIntegrity))
}
