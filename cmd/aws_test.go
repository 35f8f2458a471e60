//go:build small_tests || all_tests

package cmd

import (
	"context"
	"testing"

	"github.com/mbland/mailmerge/config"
	"github.com/mbland/mailmerge/storage"
	"github.com/mbland/mailmerge/testutils"
	"gotest.tools/assert"
)

// Loading the default AWS configuration doesn't contact AWS, so these remain
// small tests.
func TestAwsFactoryFunctions(t *testing.T) {
	ctx := context.Background()

	t.Run("NewLambdaClient", func(t *testing.T) {
		client, err := NewLambdaClient(ctx)

		assert.NilError(t, err)
		assert.Assert(t, client != nil)
	})

	t.Run("NewInputStore", func(t *testing.T) {
		opts := config.Defaults()
		opts.Storage.Bucket = "mailmerge-inputs"
		opts.Storage.Prefix = "runs"

		store, err := NewInputStore(ctx, &opts)

		assert.NilError(t, err)
		s3Store, ok := store.(*storage.S3Store)
		assert.Assert(t, ok)
		assert.Equal(t, "mailmerge-inputs", s3Store.Bucket)
		assert.Equal(t, "runs/foo.csv", store.Key("foo.csv"))
	})

	t.Run("NewInputStoreFailsWithoutBucket", func(t *testing.T) {
		opts := config.Defaults()

		_, err := NewInputStore(ctx, &opts)

		assert.ErrorContains(t, err, "MAILMERGE_S3_BUCKET")
		assert.Assert(t, testutils.ErrorIs(err, storage.ErrNoBucket))
	})
}
