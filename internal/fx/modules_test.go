package fx

import (
	"path/filepath"
	"royale-tracker/internal/service"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModule_Resolves(t *testing.T) {
	t.Setenv("CR_API_TOKEN", "token")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "fx.db"))
	t.Setenv("STATUS_PORT", "")

	require.NoError(t, fx.ValidateApp(
		Module,
		StatusModule,
		fx.Invoke(func(*service.Crawler, *service.CatalogService) {}),
	))
}
