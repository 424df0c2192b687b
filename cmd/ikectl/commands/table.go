package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goike/internal/ike"
)

func tableCmd(opts *options) *cobra.Command {
	var exchange string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the ISAKMP transition table",
		Long: "Prints every rule of the default transition table in match order. " +
			"The first rule that matches a negotiation wins.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := tableViews(ike.DefaultTable(), exchange)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts.format, views, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "#\tSTATE\tNEXT\tEXCHANGE\tAUTH\tMANDATORY\tOPTIONAL\tOUTPUT")
				for _, v := range views {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						v.Index, v.State, v.NextState, v.Exchange, v.Auth,
						v.Mandatory, v.Optional, strings.Join(v.Output, ","))
				}
			})
		},
	}

	cmd.Flags().StringVar(&exchange, "exchange", "",
		"only rules for this exchange: main, aggressive, quick, ngm, cfg, info")

	return cmd
}

// tableViews converts t to views, keeping only rules that can apply to
// exchange when it is set. Wildcard exchange rules are always kept.
func tableViews(t ike.Table, exchange string) ([]ruleView, error) {
	filter := exchange != ""

	var x ike.ExchangeType
	if filter {
		var err error
		if x, err = ike.ParseExchangeType(exchange); err != nil {
			return nil, err
		}
	}

	views := make([]ruleView, 0, len(t))
	for i := range t {
		if filter && !t[i].Exchange.Matches(x) {
			continue
		}
		views = append(views, ruleToView(i, &t[i]))
	}

	return views, nil
}
