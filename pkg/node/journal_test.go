package node

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRecordAndRecent(t *testing.T) {
	j := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NotNil(t, j)
	defer j.Close()

	j.Record("query_artifact", "a1", "ok")
	j.Record("query_artifact", "a2", "not_found")
	j.Record("ingest_artifact", "a3", "ok")

	entries, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ingest_artifact", entries[0].Op)
	assert.Equal(t, "a3", entries[0].Target)
	assert.Equal(t, "a2", entries[1].Target)
}

func TestJournalNilSafe(t *testing.T) {
	var j *Journal
	j.Record("query_artifact", "a1", "ok")
	entries, err := j.Recent(5)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	j.Close()

	assert.Nil(t, OpenJournal(""))
}

func TestCacheNilSafe(t *testing.T) {
	var c *ResponseCache
	ctx := context.Background()
	_, ok := c.GetArtifact(ctx, "a1")
	assert.False(t, ok)
	c.InvalidateArtifact(ctx, "a1")
	c.Close()
}
