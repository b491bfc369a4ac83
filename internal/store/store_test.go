package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a uniquely named in-memory database so parallel tests
// never share state through the sqlite connection cache. The opaque URL form
// keeps the colon in "file:" out of the host segment.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	databaseURL := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := Open(context.Background(), databaseURL)
	require.NoError(t, err)
	return database
}

func TestOpenRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "   ")
	require.Error(t, err)
}

func TestOpenRejectsUnsupportedScheme(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "mysql://localhost/shop")
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestOpenRejectsSchemelessURL(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "shop.db")
	require.Error(t, err)
}

func TestOpenReportsSQLiteDriver(t *testing.T) {
	t.Parallel()

	database := openTestDB(t)
	require.Equal(t, "sqlite", database.Driver())
}
