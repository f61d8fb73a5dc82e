package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
)

type failedQueries struct {
	gormlogger.Interface
	errs []error
}

func (f *failedQueries) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err != nil {
		f.errs = append(f.errs, err)
	}
}

func TestRepositoryGetMissingKeyIsQuiet(t *testing.T) {
	client := dbtest.Open(t)
	recorder := &failedQueries{Interface: gormlogger.Discard}
	repo := NewRepository(client.DB().Session(&gorm.Session{Logger: recorder}))

	row, err := repo.Get(context.Background(), KeyFreeShippingEnabled)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.Empty(t, recorder.errs)
}
