package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/lanes"
)

func TestWorkTagString(t *testing.T) {
	assert.Equal(t, "Fragment", FragmentTag.String())
	assert.Equal(t, "Suspense", SuspenseComponent.String())
	assert.Equal(t, "Unknown", WorkTag(99).String())
}

func TestFlagsString(t *testing.T) {
	assert.Equal(t, "NoFlags", NoFlags.String())
	assert.Equal(t, "Placement|Update", (Placement | UpdateEffect).String())
	assert.NotZero(t, MutationMask&UpdateEffect)
	assert.NotZero(t, LayoutMask&UpdateEffect)
}

func TestFragmentElementUsesFragmentTag(t *testing.T) {
	f, err := createFiberFromElement(Fragment("a", "b"), lanes.DefaultLane)
	require.NoError(t, err)
	assert.Equal(t, FragmentTag, f.Tag)
	assert.Same(t, FragmentType, f.Type)
}
