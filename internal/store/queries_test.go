package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryexec/internal/model"
)

func TestCreateQuery_AssignsIncreasingIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.CreateQuery(ctx, "SELECT * FROM passengers WHERE Age > 30")
	require.NoError(t, err)
	id2, err := s.CreateQuery(ctx, "SELECT COUNT(*) FROM passengers")
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Greater(t, id2, id1)
}

func TestCreateQuery_StoresNonSelectText(t *testing.T) {
	// Policy is enforced at execution time, not at registration.
	s := createTestStore(t)

	id, err := s.CreateQuery(context.Background(), "DROP TABLE passengers")
	require.NoError(t, err)

	text, err := s.GetQueryText(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE passengers", text)
}

func TestCreateQuery_RejectsBlank(t *testing.T) {
	s := createTestStore(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.CreateQuery(context.Background(), text)
		assert.ErrorContains(t, err, "cannot be blank")
	}
}

func TestGetQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Second)

	id, err := s.CreateQuery(ctx, "SELECT 1")
	require.NoError(t, err)

	q, err := s.GetQuery(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, q.ID)
	assert.Equal(t, "SELECT 1", q.Text)
	assert.True(t, q.CreatedAt.After(before))
}

func TestGetQueryText_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetQueryText(context.Background(), 99999)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.Contains(t, err.Error(), "99999")
}

func TestListQueries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListQueries(ctx)
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	texts := []string{"SELECT 1", "SELECT 2", "SELECT 3"}
	for _, text := range texts {
		_, err := s.CreateQuery(ctx, text)
		require.NoError(t, err)
	}

	queries, err := s.ListQueries(ctx)
	require.NoError(t, err)
	require.Len(t, queries, 3)
	for i, q := range queries {
		assert.Equal(t, int64(i+1), q.ID)
		assert.Equal(t, texts[i], q.Text)
	}
}

func TestQueries_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	id, err := s1.CreateQuery(ctx, "SELECT Name FROM passengers")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	text, err := s2.GetQueryText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SELECT Name FROM passengers", text)
}
