package repository

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
)

func TestUploadCodeResolvesExactlyOnce(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	code := repo.IssueUploadCode("alice")
	require.Len(t, code, uploadCodeLength)

	uid, ok := repo.ResolveUploadCode(code)
	require.True(t, ok)
	require.Equal(t, "alice", uid)

	_, ok = repo.ResolveUploadCode(code)
	require.False(t, ok, "a code is single-use")
}

func TestUploadCodeExpires(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	code := repo.IssueUploadCode("bob")

	clk.Advance(2*time.Minute + time.Second)

	_, ok := repo.ResolveUploadCode(code)
	require.False(t, ok, "an expired code resolves to absent")

	// Expiry evicted the code; even winding the clock back cannot revive it.
	_, ok = repo.ResolveUploadCode(code)
	require.False(t, ok)
}

func TestUploadCodeJustWithinTTL(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	code := repo.IssueUploadCode("carol")
	clk.Advance(2 * time.Minute)

	uid, ok := repo.ResolveUploadCode(code)
	require.True(t, ok, "a code at exactly its TTL is still valid")
	require.Equal(t, "carol", uid)
}

func TestRevokeUploadCode(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	code := repo.IssueUploadCode("dave")
	repo.RevokeUploadCode(code)

	_, ok := repo.ResolveUploadCode(code)
	require.False(t, ok)

	// Revoking an absent code is a no-op.
	repo.RevokeUploadCode(code)
	repo.RevokeUploadCode("NEVERISSUED")
}

func TestUploadCodeAlphabet(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	for i := 0; i < 100; i++ {
		code := repo.IssueUploadCode("erin")
		for _, c := range code {
			require.Contains(t, uploadCodeAlphabet, string(c))
		}
	}
}

func TestUploadCodesIndependent(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newBareRepository(clk)

	codeA := repo.IssueUploadCode("alice")
	codeB := repo.IssueUploadCode("bob")
	require.NotEqual(t, codeA, codeB)

	uid, ok := repo.ResolveUploadCode(codeB)
	require.True(t, ok)
	require.Equal(t, "bob", uid)

	uid, ok = repo.ResolveUploadCode(codeA)
	require.True(t, ok)
	require.Equal(t, "alice", uid)
}
