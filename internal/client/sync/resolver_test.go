package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conflictCase(p string, localMtime, remoteMtime int64) ConflictCase {
	return ConflictCase{
		Path:   p,
		Local:  localFile(p, localMtime),
		Remote: remoteFile(p, remoteMtime, "id-"+p),
	}
}

func TestParsePolicy(t *testing.T) {
	for _, valid := range []string{"prefer-local", "prefer-remote", "prefer-newer", "keep-both"} {
		policy, err := ParsePolicy(valid)
		require.NoError(t, err)
		assert.Equal(t, Policy(valid), policy)
	}

	_, err := ParsePolicy("prefer-chaos")
	assert.Error(t, err)
	_, err = ParsePolicy("")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	resolvedAt := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		c      ConflictCase
		policy Policy
		want   ActionKind
	}{
		{"prefer-local always uploads", conflictCase("a.md", 100, 900), PolicyPreferLocal, ActionUpload},
		{"prefer-remote always downloads", conflictCase("a.md", 900, 100), PolicyPreferRemote, ActionDownload},
		{"prefer-newer local wins", conflictCase("a.md", 900, 100), PolicyPreferNewer, ActionUpload},
		{"prefer-newer remote wins", conflictCase("a.md", 100, 900), PolicyPreferNewer, ActionDownload},
		{"prefer-newer tie goes remote", conflictCase("a.md", 500, 500), PolicyPreferNewer, ActionDownload},
		{"keep-both", conflictCase("a.md", 100, 900), PolicyKeepBoth, ActionKeepBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := Resolve(tt.c, tt.policy, resolvedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rc.Action)
			if tt.want == ActionKeepBoth {
				assert.NotEmpty(t, rc.DuplicatePath)
			} else {
				assert.Empty(t, rc.DuplicatePath)
			}
		})
	}

	t.Run("unknown policy is an error", func(t *testing.T) {
		_, err := Resolve(conflictCase("a.md", 1, 2), Policy("coin-flip"), resolvedAt)
		assert.Error(t, err)
	})
}

func TestDuplicatePath(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "notes/c_conflict_20240101093000.000.md", duplicatePath("notes/c.md", at))
	assert.Equal(t, "README_conflict_20240101093000.000", duplicatePath("README", at))

	// millisecond stamp keeps rapid successive runs apart
	later := at.Add(250 * time.Millisecond)
	assert.NotEqual(t, duplicatePath("c.md", at), duplicatePath("c.md", later))
}

func TestResolvePlan(t *testing.T) {
	plan := &SyncPlan{
		Conflicts: []ConflictCase{
			conflictCase("a.md", 900, 100),
			conflictCase("b.md", 100, 900),
		},
	}

	resolved, err := ResolvePlan(plan, PolicyPreferNewer, time.Now())
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, ActionUpload, resolved[0].Action)
	assert.Equal(t, ActionDownload, resolved[1].Action)

	_, err = ResolvePlan(plan, Policy("bogus"), time.Now())
	assert.Error(t, err)
}
