package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/storage"
)

func TestModule_RegistersOnStart(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	cfg := storage.DefaultConfig(t.TempDir())
	cfg.GCInterval = 0

	reg := prometheus.NewRegistry()
	var m *Metrics
	app := fxtest.New(t,
		fx.Supply(kr, cfg),
		fx.Provide(func() prometheus.Registerer { return reg }),
		archive.Module(),
		Module(),
		fx.Populate(&m),
	)
	require.NotNil(t, m)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Zero(t, count)

	app.RequireStart()
	count, err = testutil.GatherAndCount(reg, "dat_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	app.RequireStop()
	count, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Zero(t, count)
}
