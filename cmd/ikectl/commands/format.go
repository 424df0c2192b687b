// Package commands implements the ikectl CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/dantte-lp/goike/internal/ike"
	"github.com/dantte-lp/goike/internal/ikesim"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	formatYAML  = "yaml"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// render writes v to w in the requested format. The table format is
// produced by table.
func render(w io.Writer, format string, v any, table func(*tabwriter.Writer)) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	case formatTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		if err := tw.Flush(); err != nil {
			return fmt.Errorf("flush tabwriter: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Views ---

// ruleView is the serializable form of a transition rule.
type ruleView struct {
	Index     int      `json:"index"     yaml:"index"`
	State     string   `json:"state"     yaml:"state"`
	NextState string   `json:"next_state" yaml:"next_state"`
	Exchange  string   `json:"exchange"  yaml:"exchange"`
	Auth      string   `json:"auth"      yaml:"auth"`
	Mandatory string   `json:"mandatory" yaml:"mandatory"`
	Optional  string   `json:"optional"  yaml:"optional"`
	Input     []string `json:"input"     yaml:"input"`
	Output    []string `json:"output"    yaml:"output"`
}

func ruleToView(i int, r *ike.TransitionRule) ruleView {
	return ruleView{
		Index:     i,
		State:     r.State.String(),
		NextState: r.NextState.String(),
		Exchange:  r.Exchange.String(),
		Auth:      r.Auth.String(),
		Mandatory: r.Mandatory.String(),
		Optional:  r.Optional.String(),
		Input:     stepNames(r.Input),
		Output:    stepNames(r.Output),
	}
}

func stepNames(ids []ike.StepID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return names
}

// entryView is the serializable form of a transcript entry.
type entryView struct {
	Kind      string   `json:"kind"                yaml:"kind"`
	Peer      string   `json:"peer"                yaml:"peer"`
	Exchange  string   `json:"exchange"            yaml:"exchange"`
	MessageID uint32   `json:"message_id"          yaml:"message_id"`
	State     string   `json:"state,omitempty"     yaml:"state,omitempty"`
	Payloads  []string `json:"payloads,omitempty"  yaml:"payloads,omitempty"`
	Notify    string   `json:"notify,omitempty"    yaml:"notify,omitempty"`
}

func entriesToView(tr *ikesim.Transcript) []entryView {
	entries := tr.Entries()
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		v := entryView{
			Kind:      e.Kind.String(),
			Peer:      e.Peer,
			Exchange:  e.Exchange.String(),
			MessageID: e.MessageID,
		}
		switch e.Kind {
		case ikesim.EntryPacket, ikesim.EntryDropped:
			for _, pt := range e.Payloads {
				v.Payloads = append(v.Payloads, pt.String())
			}
		case ikesim.EntryNotify:
			v.State = e.State.String()
			v.Notify = e.Notify.String()
		default:
			v.State = e.State.String()
		}
		views = append(views, v)
	}
	return views
}

// metricView is one gathered metric sample.
type metricView struct {
	Name   string            `json:"name"             yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value"            yaml:"value"`
}

func (m metricView) String() string {
	if len(m.Labels) == 0 {
		return m.Name
	}
	pairs := make([]string, 0, len(m.Labels))
	for k, v := range m.Labels {
		pairs = append(pairs, k+"="+v)
	}
	slices.Sort(pairs)
	return m.Name + "{" + strings.Join(pairs, ",") + "}"
}
