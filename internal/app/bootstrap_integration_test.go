package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamdict/internal/app"
	"teamdict/internal/testutils"
)

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()

	// Migrations live in ../../migrations relative to this file.
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	cfg.MigrationPath = fmt.Sprintf("file://%s/../../migrations", basepath)

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, deps)
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	for _, name := range []string{"data_entry_queue", "utility_jobs", "processed_jobs"} {
		var exists bool
		err = deps.DB.QueryRow(
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", name,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", name)
	}

	assert.NoError(t, deps.NSQProducer.Ping())
}
