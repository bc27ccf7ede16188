package propvalue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/pkg/schema"
)

func TestTryFrom_Scalar(t *testing.T) {
	v, err := TryFrom("42", schema.IntType)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, v.Ints)

	v, err = TryFrom("3.14", schema.FloatType)
	require.NoError(t, err)
	require.Equal(t, []float64{3.14}, v.Floats)
}

func TestTryFrom_MultiValueSeparatorPriority(t *testing.T) {
	v, err := TryFrom("1-2-3", schema.IntType)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, v.Ints)

	v, err = TryFrom("1~2", schema.IntType)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, v.Ints)

	v, err = TryFrom("1,2,3", schema.IntType)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, v.Ints)
}

func TestTryFrom_IntFallsBackToFloatTruncation(t *testing.T) {
	v, err := TryFrom("3.99", schema.IntType)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, v.Ints)
}

func TestTryFrom_BadNumeric(t *testing.T) {
	_, err := TryFrom("not-a-number", schema.FloatType)
	require.Error(t, err)
}

func TestValue_Equal(t *testing.T) {
	a, _ := TryFrom("hello", schema.StringType)
	b, _ := TryFrom("hello", schema.StringType)
	c, _ := TryFrom("world", schema.StringType)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
