package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

func newSessionCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the academic session promotions are recorded against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.connect(cmd.Context()); err != nil {
				return err
			}
			if warning := cli.orc.SessionWarning(); warning != "" {
				_, _ = fmt.Fprintln(cli.out, color.YellowString("%s", warning))
				return nil
			}
			session := cli.orc.Sessions().Current()
			_, _ = fmt.Fprintf(cli.out, "Current session: %s (%s)\n", session.Label(), session.ID)
			return nil
		},
	}
}

func newClassesCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List class levels and their streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.connect(cmd.Context()); err != nil {
				return err
			}
			cli.printClassLevels(cli.orc.Catalog().Levels())
			return nil
		},
	}
}

func newStudentsCmd(cli *commandLine) *cobra.Command {
	var level, stream, status string

	cmd := &cobra.Command{
		Use:   "students",
		Short: "List students, optionally filtered by class, stream and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.connect(cmd.Context()); err != nil {
				return err
			}
			filter := school.StudentFilter{
				ClassLevel: core.CleanString(level),
				Stream:     core.CleanString(stream),
				Status:     school.StudentStatus(core.CleanString(status, true /* lower */)),
			}
			students, err := cli.orc.QueryRoster(cmd.Context(), filter)
			if err != nil {
				return cli.authError(err)
			}
			cli.printStudents(students)
			_, _ = fmt.Fprintf(cli.out, "%s (%s)\n", plural(len(students), "student"), filter)
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "class", "", "class level, e.g. \"Form 2\"")
	cmd.Flags().StringVar(&stream, "stream", "", "stream of the class level")
	cmd.Flags().StringVar(&status, "status", "", "active, suspended or alumni")
	return cmd
}
