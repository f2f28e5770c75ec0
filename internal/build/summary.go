package build

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/libforge/internal/resolve"
)

// WriteSummary prints one line per plan and bundle for terminal output.
func WriteSummary(w io.Writer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PLAN\tSTATUS\tARCHES\tDETAIL")
	for _, p := range r.Plans {
		detail := ""
		switch {
		case p.Err != nil:
			detail = firstLine(p.Err.Error())
		case p.Entry != nil:
			detail = p.Entry.Dir
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Status, archSummary(p), detail)
	}
	for _, b := range r.Bundles {
		for _, out := range b.Outputs {
			_, _ = fmt.Fprintf(tw, "bundle %s\t%s\t-\t%s\n", b.Name, StatusSuccess, out)
		}
		for _, skipped := range b.Skipped {
			_, _ = fmt.Fprintf(tw, "bundle %s\tskipped\t-\t%s\n", b.Name, skipped)
		}
	}
	names := make([]string, 0, len(r.BundleErrors))
	for name := range r.BundleErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(tw, "bundle %s\t%s\t-\t%s\n", name, StatusFailed, firstLine(r.BundleErrors[name].Error()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	succeeded, failed := r.Counts()
	_, err := fmt.Fprintf(w, "\n%s: %d succeeded, %d failed in %s\n",
		r.Status, succeeded, failed, r.Duration.Round(time.Millisecond))
	return err
}

// WritePreviews prints the resolved plans and their rendered GN args.
func WritePreviews(w io.Writer, previews []Preview) error {
	for _, pv := range previews {
		p := pv.Plan
		if _, err := fmt.Fprintf(w, "%s (%s, %s)\n", p.Key(), p.Traits.Family, strings.Join(archNames(p), " ")); err != nil {
			return err
		}
		for _, arch := range p.Arches {
			if err := p.ArchError(arch); err != nil {
				_, _ = fmt.Fprintf(w, "  %s: %s\n", arch, firstLine(err.Error()))
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s: %s\n", arch, pv.Config.ForArch(arch).Inline())
		}
		if len(p.Excluded) > 0 {
			omitted := make([]string, 0, len(p.Excluded))
			for _, e := range p.Excluded {
				omitted = append(omitted, e.Library)
			}
			_, _ = fmt.Fprintf(w, "  omitted: %s\n", strings.Join(omitted, ", "))
		}
	}
	return nil
}

func archSummary(p PlanResult) string {
	if len(p.Arches) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(p.Arches))
	for _, a := range p.Arches {
		mark := "ok"
		if a.Err != nil {
			mark = "failed"
		}
		parts = append(parts, string(a.Arch)+":"+mark)
	}
	return strings.Join(parts, " ")
}

func archNames(p *resolve.Plan) []string {
	names := make([]string, 0, len(p.Arches)+1)
	for _, a := range p.Arches {
		names = append(names, string(a))
	}
	if p.Universal {
		names = append(names, "universal")
	}
	return names
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
