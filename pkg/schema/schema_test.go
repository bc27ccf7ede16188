package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProperty_IsRTypeEligible(t *testing.T) {
	cases := []struct {
		name  string
		flags Flags
		want  bool
	}{
		{"not indexed", Flags{IsIndex: false}, true},
		{"indexed filter not analyzed", Flags{IsIndex: true, IsFilter: true, IsAnalyzed: false}, true},
		{"indexed analyzed", Flags{IsIndex: true, IsFilter: true, IsAnalyzed: true}, false},
		{"indexed not filter", Flags{IsIndex: true, IsFilter: false}, false},
	}
	for _, c := range cases {
		p := Property{Flags: c.flags}
		require.Equal(t, c.want, p.IsRTypeEligible(), c.name)
	}
}

func TestNewSummaryInfo_ClampsSummaryNum(t *testing.T) {
	s := NewSummaryInfo(200, 0)
	require.Equal(t, 1, s.SummaryNum)

	s = NewSummaryInfo(200, 3)
	require.Equal(t, 3, s.SummaryNum)
}

func TestSchema_Lookup(t *testing.T) {
	s := New([]Property{
		{ID: 0, Name: "DOCID", Type: StringType},
		{ID: 1, Name: "title", Type: StringType},
	}, "DOCID", "")

	p, ok := s.Lookup("title")
	require.True(t, ok)
	require.Equal(t, PropertyID(1), p.ID)

	_, ok = s.Lookup("missing")
	require.False(t, ok)

	require.Equal(t, PropertyID(0), s.DocIDProperty)
	require.False(t, s.HasDateProperty)
}
