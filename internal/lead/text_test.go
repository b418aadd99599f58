package lead

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Jane Doe", CleanText("  Jane​ \n\t Doe "))
	require.Equal(t, "", CleanText("﻿  "))
}

func TestConnectionDegree(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2nd", ConnectionDegree("• 2nd degree connection"))
	require.Equal(t, "3rd", ConnectionDegree("3rd+"))
	require.Equal(t, "1st", ConnectionDegree("1st"))
	require.Equal(t, "", ConnectionDegree("Follow"))
}

func TestMutualCount(t *testing.T) {
	t.Parallel()

	n, ok := MutualCount("23 mutual connections")
	require.True(t, ok)
	require.Equal(t, 23, n)

	n, ok = MutualCount("Jane and 4 other mutual connections")
	require.True(t, ok)
	require.Equal(t, 4, n)

	_, ok = MutualCount("no overlap")
	require.False(t, ok)
}

func TestSplitTitleCompany(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, title, company string
	}{
		{"CFO at Acme Inc", "CFO", "Acme Inc"},
		{"Engineer @ Widgets", "Engineer", "Widgets"},
		{"Partner - Law Firm", "Partner", "Law Firm"},
		{"Founder | Stealth", "Founder", "Stealth"},
		{"Independent advisor", "Independent advisor", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		title, company := SplitTitleCompany(tc.in)
		require.Equal(t, tc.title, title, tc.in)
		require.Equal(t, tc.company, company, tc.in)
	}
}
