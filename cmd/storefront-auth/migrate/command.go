package migrate

import (
	"github.com/spf13/cobra"

	"github.com/fitgearzzz/storefront-auth/internal/business"
	"github.com/fitgearzzz/storefront-auth/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Storefront Auth migrations",
		"Applies the pending database schema migrations and exits.",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
