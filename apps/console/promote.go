package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	"github.com/trezcool/masomo-console/core/school"
)

type target struct {
	level  string
	stream string
}

func (t *target) flags(cmd *cobra.Command, prefix, what string) {
	levelFlag, streamFlag := "to", "stream"
	if prefix != "" {
		levelFlag, streamFlag = prefix, prefix+"-stream"
	}
	cmd.Flags().StringVar(&t.level, levelFlag, "", what+" class level, e.g. \"Form 3\"")
	cmd.Flags().StringVar(&t.stream, streamFlag, "", what+" stream, when the class level has streams")
}

func newValidateCmd(cli *commandLine) *cobra.Command {
	var studentID string
	var to target

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Show the advisory warnings of promoting a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.connect(cmd.Context()); err != nil {
				return err
			}
			st, err := cli.selectStudent(studentID, to)
			if err != nil {
				return err
			}
			cli.printWarnings(st.Validation)
			return nil
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "admission number of the student")
	to.flags(cmd, "", "target")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newPromoteCmd(cli *commandLine) *cobra.Command {
	var studentID, outcome, remarks string
	var to target
	var yes bool

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote, repeat, transfer or graduate one student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := cli.connect(ctx); err != nil {
				return err
			}
			cli.orc.SwitchTab(promotion.TabIndividual)

			st, err := cli.selectStudent(studentID, to)
			if err != nil {
				return err
			}
			cli.printWarnings(st.Validation)
			if st.Validation != nil && st.Validation.HasWarnings() && !yes {
				ok, err := cli.confirm("Promote anyway?", "The school server reported warnings for this promotion.", errNeedsYes)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cli.out, "Cancelled.")
					return nil
				}
			}

			form := cli.orc.Individual()
			form.SetOutcome(school.Outcome(core.CleanString(outcome, true /* lower */)))
			form.SetRemarks(remarks)
			if _, err := form.Submit(ctx); err != nil {
				var execErr *promotion.ExecutionError
				if errors.As(err, &execErr) {
					return SilentExitError{Code: exitFailure} // already surfaced
				}
				return cli.authError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "admission number of the student")
	to.flags(cmd, "", "target")
	cmd.Flags().StringVar(&outcome, "outcome", string(school.OutcomePromoted), "promoted, repeated, transferred or graduated")
	cmd.Flags().StringVar(&remarks, "remarks", "", "optional remarks recorded with the promotion")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// selectStudent fills the individual form and waits for its validation.
func (cli *commandLine) selectStudent(studentID string, to target) (promotion.IndividualState, error) {
	if _, ok := cli.orc.Catalog().FindByLevel(to.level); !ok {
		return promotion.IndividualState{}, core.NewValidationError(nil, core.FieldError{Field: "to", Error: "unknown class level"})
	}
	form := cli.orc.Individual()
	form.Select(studentID, to.level, school.Stream(to.stream))
	cli.orc.Wait()
	if cli.authErr != nil {
		return promotion.IndividualState{}, cli.authErr
	}
	return form.State(), nil
}

func newBulkPromoteCmd(cli *commandLine) *cobra.Command {
	var from, to target
	var yes bool

	cmd := &cobra.Command{
		Use:   "bulk-promote",
		Short: "Promote every active student of a class (and stream) at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := cli.connect(ctx); err != nil {
				return err
			}
			cli.orc.SwitchTab(promotion.TabBulk)
			if err := cli.chooseTarget(&to); err != nil {
				return err
			}
			return cli.bulkPromote(ctx, from, to, yes)
		},
	}
	from.flags(cmd, "from", "source")
	to.flags(cmd, "to", "target")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// chooseTarget lets the operator pick a missing target class level or stream.
func (cli *commandLine) chooseTarget(to *target) error {
	catalog := cli.orc.Catalog()
	if to.level == "" {
		if !cli.interactive() {
			return errors.Wrap(errNoInteraction, "--to is required")
		}
		levels := catalog.Levels()
		options := make([]string, 0, len(levels))
		for _, cl := range levels {
			options = append(options, cl.Level)
		}
		level, err := cli.prompter.Select("Promote to which class level?", options)
		if err != nil {
			return err
		}
		to.level = level
	}
	if to.stream == "" && catalog.StreamRequired(to.level) {
		if !cli.interactive() {
			return errors.Wrapf(errNoInteraction, "--to-stream is required for %s", to.level)
		}
		cl, _ := catalog.FindByLevel(to.level)
		stream, err := cli.prompter.Select(fmt.Sprintf("Which stream of %s?", cl.Level), cl.Streams)
		if err != nil {
			return err
		}
		to.stream = stream
	}
	return nil
}

func (cli *commandLine) bulkPromote(ctx context.Context, from, to target, yes bool) error {
	bulk := cli.orc.Bulk()
	if err := bulk.SelectSource(from.level, school.Stream(from.stream)); err != nil {
		return err
	}
	if err := bulk.SelectTarget(to.level, school.Stream(to.stream)); err != nil {
		return err
	}
	cli.orc.Wait()

	st := bulk.State()
	switch {
	case cli.authErr != nil:
		return cli.authErr
	case st.Phase == promotion.PhaseIdle:
		return cli.incompleteSource(from)
	case st.PreviewError != nil:
		return errors.Wrap(st.PreviewError, "loading cohort preview")
	}

	confirmation, err := bulk.RequestConfirmation(ctx)
	if err != nil {
		if errors.Is(err, promotion.ErrEmptyCohort) {
			_, _ = fmt.Fprintln(cli.out, color.YellowString("No active students in %s.", st.Source.Label()))
			return nil
		}
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s in %s:\n", plural(confirmation.CohortSize, "active student"), confirmation.Source)
	cli.printStudents(st.Preview)

	if !yes {
		ok, err := cli.confirm(confirmation.Prompt(), "", errNeedsConfirm)
		if err == nil && ok {
			ok, err = cli.confirm(
				"Are you sure?",
				fmt.Sprintf("%s will be moved to %s.", plural(confirmation.CohortSize, "student"), confirmation.Target),
				errNeedsConfirm,
			)
		}
		if err != nil || !ok {
			_ = bulk.Cancel()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cli.out, "Cancelled.")
			return nil
		}
	}

	out, err := bulk.Execute(ctx)
	if err != nil {
		return err
	}
	if out.Kind == promotion.BulkFailed {
		if promotion.IsUnauthenticated(out.Err) {
			return cli.authError(out.Err)
		}
		return SilentExitError{Code: exitFailure} // already surfaced
	}
	return nil
}

// incompleteSource explains why no cohort preview was loaded for from.
func (cli *commandLine) incompleteSource(from target) error {
	cl, ok := cli.orc.Catalog().FindByLevel(from.level)
	switch {
	case !ok:
		return core.NewValidationError(nil, core.FieldError{Field: "from", Error: "unknown class level"})
	case from.stream == "":
		return core.NewValidationError(nil, core.FieldError{
			Field: "from-stream", Error: fmt.Sprintf("a stream is required for %s", cl.Level),
		})
	default:
		return core.NewValidationError(nil, core.FieldError{
			Field: "from-stream", Error: fmt.Sprintf("%s has no stream %s", cl.Level, from.stream),
		})
	}
}

// confirm asks the operator a yes/no question; without a terminal it fails with errNoTTY.
func (cli *commandLine) confirm(title, description string, errNoTTY error) (bool, error) {
	if !cli.interactive() {
		return false, errNoTTY
	}
	return cli.prompter.Confirm(title, description)
}
