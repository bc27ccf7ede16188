package scd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFileName(t *testing.T) {
	fn, err := ParseFileName("B-01-202608031200-0000123-I-books.SCD")
	require.NoError(t, err)
	require.Equal(t, 1, fn.Sequence)
	require.Equal(t, "202608031200", fn.Timestamp)
	require.Equal(t, "0000123", fn.SubSecond)
	require.Equal(t, Insert, fn.Type)
	require.Equal(t, "books", fn.Collection)
}

func TestParseFileName_BadFormat(t *testing.T) {
	_, err := ParseFileName("not-a-bundle-file.txt")
	require.Error(t, err)

	_, err = ParseFileName("B-01-202608031200-0000123-X-books.SCD")
	require.Error(t, err)
}

func TestLess_ChronologicalOrder(t *testing.T) {
	a, _ := ParseFileName("B-01-202608031200-0000001-I-books.SCD")
	b, _ := ParseFileName("B-02-202608031200-0000001-I-books.SCD")
	c, _ := ParseFileName("B-01-202608031201-0000001-I-books.SCD")

	require.True(t, Less(a, b))
	require.True(t, Less(b, c))
	require.False(t, Less(c, a))
}
