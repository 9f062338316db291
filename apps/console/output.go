package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/trezcool/masomo-console/core/promotion"
	"github.com/trezcool/masomo-console/core/school"
)

func (cli *commandLine) printNotice(n promotion.Notice) {
	var paint func(format string, a ...interface{}) string
	switch n.Kind {
	case promotion.NoticeSuccess:
		paint = color.GreenString
	case promotion.NoticeWarning:
		paint = color.YellowString
	default:
		paint = color.RedString
	}
	_, _ = fmt.Fprintln(cli.out, paint("%s", n.Message))
	for _, d := range n.Details {
		_, _ = fmt.Fprintf(cli.out, "  - %s\n", d)
	}
}

func (cli *commandLine) printWarnings(v *promotion.ValidationResult) {
	switch {
	case v == nil:
		_, _ = fmt.Fprintln(cli.out, color.YellowString("Warnings could not be checked; the promotion can still be submitted."))
	case !v.HasWarnings():
		_, _ = fmt.Fprintln(cli.out, color.GreenString("No warnings."))
	default:
		_, _ = fmt.Fprintln(cli.out, color.YellowString("Warnings:"))
		for _, w := range v.Warnings {
			_, _ = fmt.Fprintf(cli.out, "  - %s\n", w)
		}
	}
}

func (cli *commandLine) printStudents(students []school.Student) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADMISSION NO\tNAME\tCLASS\tCURRICULUM\tSTATUS")
	for _, s := range students {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.AdmissionNo, s.Name, s.Cohort(), s.Curriculum, s.Status)
	}
	_ = w.Flush()
}

func (cli *commandLine) printClassLevels(levels []school.ClassLevel) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEVEL\tCURRICULUM\tSTREAMS")
	for _, cl := range levels {
		streams := "-"
		if cl.HasStreams() {
			streams = strings.Join(cl.Streams, ", ")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", cl.Level, cl.Curriculum, streams)
	}
	_ = w.Flush()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
