package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/manuscript-review/pkg/errors"
)

func TestCacheRepositoryKeyNamespacing(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	assert.Equal(t, DefaultCacheNamespace+"documents:statuses", repo.Key("documents:statuses"))
	assert.Equal(t, DefaultCacheNamespace+"documents:*", repo.Key(DefaultCacheNamespace+"documents:*"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var out []string
	err := repo.Get(ctx, "documents:statuses", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "documents:statuses", []string{"a"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "documents:*"))
	assert.NoError(t, repo.Close())
}
