package main

import (
	"fmt"

	"github.com/spf13/cobra"

	echoapi "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
)

// newTokenCmd mints a bearer token signed with the development backend's secret key.
func newTokenCmd(cli *commandLine) *cobra.Command {
	var subject string
	var admin bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims := echoapi.NewClaims(cli.conf, core.CleanString(subject), admin)
			token, err := echoapi.GenerateToken(claims, cli.conf.Server.SecretKey)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cli.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	cmd.Flags().BoolVar(&admin, "admin", false, "allow promotions")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
