package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "dash:ADMIN:admin-1", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "dash:ADMIN:admin-1", map[string]int{"classes": 3}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "dash:*"))
	assert.Nil(t, dest)
}
