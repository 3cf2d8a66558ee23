package inventory

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/John-Robertt/herbie/internal/domain"
)

// WriteTable 以对齐列的形式输出记录（CLI inventory 子命令）。
func WriteTable(w io.Writer, records []domain.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MSG\tSTART\tEND\tVARIABLE\tLEVEL\tFORECAST")
	for _, r := range records {
		end := "EOF"
		if !r.Open() {
			end = fmt.Sprint(r.End)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", r.Message, r.Start, end, r.Variable, r.Level, r.Forecast)
		for _, s := range r.Sub {
			fmt.Fprintf(tw, "\t\t\t%s\t\t\n", s)
		}
	}
	return tw.Flush()
}
