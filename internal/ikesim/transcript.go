package ikesim

import (
	"fmt"
	"strings"

	"github.com/dantte-lp/goike/internal/ike"
)

// EntryKind classifies a transcript entry.
type EntryKind uint8

const (
	// EntryPacket is a packet put on the simulated wire.
	EntryPacket EntryKind = iota + 1

	// EntryNotify is a status or failure reported through Sender.SendNotify.
	EntryNotify

	// EntryLookup is an answered pre-shared key lookup.
	EntryLookup

	// EntryDropped is a packet the receiver refused because the
	// negotiation was busy.
	EntryDropped
)

// String returns the entry kind name.
func (k EntryKind) String() string {
	switch k {
	case EntryPacket:
		return "packet"
	case EntryNotify:
		return "notify"
	case EntryLookup:
		return "lookup"
	case EntryDropped:
		return "dropped"
	default:
		return fmt.Sprintf("EntryKind(%d)", uint8(k))
	}
}

// Entry is one observable event of a simulated negotiation.
type Entry struct {
	Kind      EntryKind
	Peer      string
	Exchange  ike.ExchangeType
	MessageID uint32
	State     ike.State
	Payloads  []ike.PayloadType
	Notify    ike.NotifyCode
}

// String formats the entry as one transcript line.
func (e Entry) String() string {
	head := fmt.Sprintf("%-9s %-7s %-10s msgid=%d", e.Peer, e.Kind, e.Exchange, e.MessageID)
	switch e.Kind {
	case EntryPacket, EntryDropped:
		names := make([]string, len(e.Payloads))
		for i, pt := range e.Payloads {
			names[i] = pt.String()
		}
		return head + " [" + strings.Join(names, " ") + "]"
	case EntryNotify:
		return head + " " + e.Notify.String() + " in " + e.State.String()
	default:
		return head + " in " + e.State.String()
	}
}

// Transcript is the ordered record of a simulation run.
type Transcript struct {
	entries []Entry
}

func (t *Transcript) add(e Entry) {
	t.entries = append(t.entries, e)
}

// Entries returns the recorded entries, oldest first.
func (t *Transcript) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Packets returns the packet entries sent by peer.
func (t *Transcript) Packets(peer string) []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.Kind == EntryPacket && e.Peer == peer {
			out = append(out, e)
		}
	}
	return out
}

// Notifies returns the notify codes reported by peer, oldest first.
func (t *Transcript) Notifies(peer string) []ike.NotifyCode {
	var out []ike.NotifyCode
	for _, e := range t.entries {
		if e.Kind == EntryNotify && e.Peer == peer {
			out = append(out, e.Notify)
		}
	}
	return out
}

// Count returns the number of entries of kind k.
func (t *Transcript) Count(k EntryKind) int {
	n := 0
	for _, e := range t.entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// String formats the transcript, one entry per line.
func (t *Transcript) String() string {
	var b strings.Builder
	for i, e := range t.entries {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, e)
	}
	return b.String()
}
