package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goike/internal/ike"
)

// Sentinel errors for CLI validation.
var (
	errStateRequired = errors.New("--state flag is required")
	errNoMatch       = errors.New("no transition rule matches")
)

// matchRequest describes the negotiation a lookup is made for.
type matchRequest struct {
	state      string
	exchange   string
	auth       string
	fields     string
	phase1Done bool
}

// matchView is the result of a rule lookup.
type matchView struct {
	Fields string   `json:"fields" yaml:"fields"`
	Rule   ruleView `json:"rule"   yaml:"rule"`
}

func matchCmd(opts *options) *cobra.Command {
	var req matchRequest

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show the rule a negotiation would match",
		Long: "Builds a negotiation in the given state and looks up the first rule " +
			"of the default transition table that accepts the given inbound fields.",
		Example: "  ikectl match --state START_SA_NEGOTIATION_R --exchange main --fields \"SA VID\"\n" +
			"  ikectl match --state START_QM_R --exchange quick --fields \"HASH SA NONCE\" --phase1-done",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := lookupRule(ike.DefaultTable(), req)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts.format, view, func(w *tabwriter.Writer) {
				r := view.Rule
				fmt.Fprintf(w, "Fields:\t%s\n", view.Fields)
				fmt.Fprintf(w, "Rule:\t#%d\n", r.Index)
				fmt.Fprintf(w, "State:\t%s -> %s\n", r.State, r.NextState)
				fmt.Fprintf(w, "Exchange:\t%s\n", r.Exchange)
				fmt.Fprintf(w, "Auth:\t%s\n", r.Auth)
				fmt.Fprintf(w, "Mandatory:\t%s\n", r.Mandatory)
				fmt.Fprintf(w, "Optional:\t%s\n", r.Optional)
				fmt.Fprintf(w, "Input:\t%s\n", strings.Join(r.Input, ", "))
				fmt.Fprintf(w, "Output:\t%s\n", strings.Join(r.Output, ", "))
			})
		},
	}

	cmd.Flags().StringVar(&req.state, "state", "", "negotiation state, e.g. MM_SA_R (required)")
	cmd.Flags().StringVar(&req.exchange, "exchange", "main",
		"exchange type: main, aggressive, quick, ngm, cfg, info")
	cmd.Flags().StringVar(&req.auth, "auth", "",
		"auth method: psk, sig, pke (empty before the proposal is read)")
	cmd.Flags().StringVar(&req.fields, "fields", "",
		"inbound payload fields, e.g. \"SA VID\"; empty for an outbound step")
	cmd.Flags().BoolVar(&req.phase1Done, "phase1-done", false,
		"mark phase 1 of the SA as complete")

	return cmd
}

// lookupRule builds the negotiation described by req and returns the first
// rule of t that matches it.
func lookupRule(t ike.Table, req matchRequest) (matchView, error) {
	if req.state == "" {
		return matchView{}, errStateRequired
	}

	state, err := ike.ParseState(req.state)
	if err != nil {
		return matchView{}, err
	}

	x, err := ike.ParseExchangeType(req.exchange)
	if err != nil {
		return matchView{}, err
	}

	auth, err := ike.ParseAuthMethod(req.auth)
	if err != nil {
		return matchView{}, err
	}

	fields, err := ike.ParseFieldMask(req.fields)
	if err != nil {
		return matchView{}, err
	}

	sa := ike.NewSA(ike.Cookies{}, ike.HashSHA1)
	if req.phase1Done {
		sa.MarkPhase1Done()
	}

	neg := ike.NewNegotiation(sa, x, state, 0)
	neg.AuthMethod = auth

	rule, i := t.Match(neg, fields)
	if rule == nil {
		return matchView{}, fmt.Errorf("%w: %s %s auth=%s fields=%s",
			errNoMatch, state, x, auth, fields)
	}

	return matchView{Fields: fields.String(), Rule: ruleToView(i, rule)}, nil
}
