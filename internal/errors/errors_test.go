package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	err := New(fmt.Errorf("scaler artifact missing")).
		Component("scaler").
		Category(CategoryConfiguration).
		Context("path", "/etc/skycast/scaler.json").
		Build()

	var ee *EnhancedError
	require.True(t, As(err, &ee))
	assert.Equal(t, "scaler", ee.Component)
	assert.Equal(t, CategoryConfiguration, ee.Category)
	assert.Equal(t, "/etc/skycast/scaler.json", ee.Context["path"])
	assert.Equal(t, "scaler artifact missing", err.Error())
}

func TestWrapPreservesMetadata(t *testing.T) {
	t.Parallel()

	inner := New(fmt.Errorf("connection refused")).
		Component("datastore").
		Category(CategoryDatabase).
		Build()

	outer := New(fmt.Errorf("saving reading: %w", inner)).Build()

	assert.True(t, HasCategory(outer, CategoryDatabase))
	assert.Equal(t, CategoryDatabase, CategoryOf(outer))
}

func TestCategoryOfPlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryGeneric, CategoryOf(fmt.Errorf("plain")))
	assert.False(t, HasCategory(fmt.Errorf("plain"), CategoryDatabase))
}
