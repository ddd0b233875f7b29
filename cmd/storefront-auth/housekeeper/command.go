package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/fitgearzzz/storefront-auth/internal/business"
	"github.com/fitgearzzz/storefront-auth/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"Storefront Auth Housekeeping job",
		"Storefront Auth Housekeeping job cleans up idle sessions and expired login attempts.",
		buildInfo,
		cmdutils.RunAsService,
		business.HousekeeperMain,
	)
}
