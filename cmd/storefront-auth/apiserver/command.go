package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/fitgearzzz/storefront-auth/internal/business"
	"github.com/fitgearzzz/storefront-auth/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Storefront Auth API server",
		"Storefront Auth API server hosts the public http API of the login, callback, logout and profile endpoints",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
