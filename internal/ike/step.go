package ike

import (
	"context"
	"fmt"
)

// -------------------------------------------------------------------------
// Step Results
// -------------------------------------------------------------------------

// Outcome is the control-flow signal a step returns to the executor.
type Outcome uint8

const (
	// OutcomeSuccess advances the cursor to the next step.
	OutcomeSuccess Outcome = iota

	// OutcomeRetryLater suspends the negotiation until an external answer
	// arrives. The cursor stays on the suspending step, which runs again on
	// resumption.
	OutcomeRetryLater

	// OutcomeRetryNow abandons the remaining steps of the rule and re-runs
	// rule matching from scratch.
	OutcomeRetryNow

	// OutcomeConnected reports that the negotiation is complete and the SA
	// usable. Only meaningful as the result of the last output step.
	OutcomeConnected

	// OutcomeFailure aborts the dispatch with StepResult.Reason.
	OutcomeFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeRetryLater:
		return "RetryLater"
	case OutcomeRetryNow:
		return "RetryNow"
	case OutcomeConnected:
		return "Connected"
	case OutcomeFailure:
		return "Failure"
	default:
		return fmt.Sprintf(unknownFmt, o)
	}
}

// StepResult is the tagged outcome of one step. Reason is set only for
// OutcomeFailure.
type StepResult struct {
	Outcome Outcome
	Reason  NotifyCode
}

// Convenience results for step implementations.
//
//nolint:gochecknoglobals // immutable values.
var (
	Success    = StepResult{Outcome: OutcomeSuccess}
	RetryLater = StepResult{Outcome: OutcomeRetryLater}
	RetryNow   = StepResult{Outcome: OutcomeRetryNow}
	Connected  = StepResult{Outcome: OutcomeConnected}
)

// Failure returns a failing StepResult carrying reason.
func Failure(reason NotifyCode) StepResult {
	return StepResult{Outcome: OutcomeFailure, Reason: reason}
}

// String formats the result, including the reason for failures.
func (r StepResult) String() string {
	if r.Outcome == OutcomeFailure {
		return "Failure(" + r.Reason.String() + ")"
	}
	return r.Outcome.String()
}

// -------------------------------------------------------------------------
// Step Functions
// -------------------------------------------------------------------------

// StepFunc is one unit of work in a rule's input or output sequence.
//
// Input steps receive out == nil. Output steps receive the outbound packet
// under construction, or nil when the caller did not ask for one. in is
// the inbound packet being processed, or nil when there is none.
//
// Steps may set Negotiation.AuthMethod and call SA.MarkPhase1Done. They
// must not change the negotiation's state or cursor.
type StepFunc func(ctx context.Context, in, out *Packet, sa *SA, neg *Negotiation, rule *TransitionRule) StepResult

// Steps maps step identifiers to their handlers. An Engine resolves every
// step its table names through a Steps registry at construction.
type Steps map[StepID]StepFunc

// Missing returns the identifiers referenced by table that have no handler
// in s, in first-reference order.
func (s Steps) Missing(table Table) []StepID {
	var missing []StepID
	seen := make(map[StepID]bool)
	for i := range table {
		for _, ids := range [2][]StepID{table[i].Input, table[i].Output} {
			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				if s[id] == nil {
					missing = append(missing, id)
				}
			}
		}
	}
	return missing
}

// With returns a copy of s with overrides applied on top.
func (s Steps) With(overrides Steps) Steps {
	out := make(Steps, len(s)+len(overrides))
	for id, fn := range s {
		out[id] = fn
	}
	for id, fn := range overrides {
		out[id] = fn
	}
	return out
}

// -------------------------------------------------------------------------
// Step Identifiers
// -------------------------------------------------------------------------

// StepID names a concrete step handler. Identifiers below stepOutputBase
// are input steps; the rest are output steps.
type StepID uint8

// Input steps.
const (
	StepInVID StepID = iota + 1
	StepInSAProposal
	StepInSAValue
	StepInCR
	StepInCert
	StepInStatusN
	StepInPrivate
	StepInNonce
	StepInHashKey
	StepInID
	StepInKE
	StepInEncrypt
	StepInSig
	StepInHash
	StepInNATD
	StepInNATTPortJump
	StepInRetryNow
	StepInQMHash1
	StepInQMHash2
	StepInQMHash3
	StepInQMSAProposals
	StepInQMSAValues
	StepInQMNonce
	StepInQMIDs
	StepInQMKE
	StepInNATOA
	StepInGenHash
	StepInNGMSAProposal
	StepInNGMSAValues
	StepInCfgAttr
	StepInN
	StepInD
)

// stepOutputBase separates the input and output identifier ranges.
const stepOutputBase StepID = 64

// Output steps.
const (
	StepOutSAProposal StepID = iota + stepOutputBase
	StepOutSAValues
	StepOutOptionalCerts
	StepOutVIDs
	StepOutPrivate
	StepOutNATD
	StepOutKE
	StepOutNonce
	StepOutID
	StepOutCerts
	StepOutCR
	StepOutSigOrHash
	StepOutStatusN
	StepOutCalcSKEYID
	StepOutHashKey
	StepOutSig
	StepOutHash
	StepOutEncrypt
	StepOutOptionalEncrypt
	StepOutCopyIV
	StepOutGetPreSharedKey
	StepOutWaitDone
	StepOutDone
	StepOutQMHash1
	StepOutQMHash2
	StepOutQMHash3
	StepOutQMSAProposals
	StepOutQMSAValues
	StepOutQMNonce
	StepOutQMOptionalKE
	StepOutQMOptionalIDs
	StepOutQMOptionalResponderLifetimeN
	StepOutNATOA
	StepOutQMWaitDone
	StepOutQMDone
	StepOutGenHash
	StepOutNGMSAProposal
	StepOutNGMSAValues
	StepOutNGMWaitDone
	StepOutNGMDone
	StepOutCfgAttr
	StepOutCfgWaitDone
	StepOutCfgDone
	StepOutNDone
	StepOutDDone
)

//nolint:gochecknoglobals // name table for String().
var stepNames = map[StepID]string{
	StepInVID:           "i_vid",
	StepInSAProposal:    "i_sa_proposal",
	StepInSAValue:       "i_sa_value",
	StepInCR:            "i_cr",
	StepInCert:          "i_cert",
	StepInStatusN:       "i_status_n",
	StepInPrivate:       "i_private",
	StepInNonce:         "i_nonce",
	StepInHashKey:       "i_hash_key",
	StepInID:            "i_id",
	StepInKE:            "i_ke",
	StepInEncrypt:       "i_encrypt",
	StepInSig:           "i_sig",
	StepInHash:          "i_hash",
	StepInNATD:          "i_natd",
	StepInNATTPortJump:  "i_natt_portjump",
	StepInRetryNow:      "i_retry_now",
	StepInQMHash1:       "i_qm_hash_1",
	StepInQMHash2:       "i_qm_hash_2",
	StepInQMHash3:       "i_qm_hash_3",
	StepInQMSAProposals: "i_qm_sa_proposals",
	StepInQMSAValues:    "i_qm_sa_values",
	StepInQMNonce:       "i_qm_nonce",
	StepInQMIDs:         "i_qm_ids",
	StepInQMKE:          "i_qm_ke",
	StepInNATOA:         "i_natoa",
	StepInGenHash:       "i_gen_hash",
	StepInNGMSAProposal: "i_ngm_sa_proposal",
	StepInNGMSAValues:   "i_ngm_sa_values",
	StepInCfgAttr:       "i_cfg_attr",
	StepInN:             "i_n",
	StepInD:             "i_d",

	StepOutSAProposal:                   "o_sa_proposal",
	StepOutSAValues:                     "o_sa_values",
	StepOutOptionalCerts:                "o_optional_certs",
	StepOutVIDs:                         "o_vids",
	StepOutPrivate:                      "o_private",
	StepOutNATD:                         "o_natd",
	StepOutKE:                           "o_ke",
	StepOutNonce:                        "o_nonce",
	StepOutID:                           "o_id",
	StepOutCerts:                        "o_certs",
	StepOutCR:                           "o_cr",
	StepOutSigOrHash:                    "o_sig_or_hash",
	StepOutStatusN:                      "o_status_n",
	StepOutCalcSKEYID:                   "o_calc_skeyid",
	StepOutHashKey:                      "o_hash_key",
	StepOutSig:                          "o_sig",
	StepOutHash:                         "o_hash",
	StepOutEncrypt:                      "o_encrypt",
	StepOutOptionalEncrypt:              "o_optional_encrypt",
	StepOutCopyIV:                       "o_copy_iv",
	StepOutGetPreSharedKey:              "o_get_pre_shared_key",
	StepOutWaitDone:                     "o_wait_done",
	StepOutDone:                         "o_done",
	StepOutQMHash1:                      "o_qm_hash_1",
	StepOutQMHash2:                      "o_qm_hash_2",
	StepOutQMHash3:                      "o_qm_hash_3",
	StepOutQMSAProposals:                "o_qm_sa_proposals",
	StepOutQMSAValues:                   "o_qm_sa_values",
	StepOutQMNonce:                      "o_qm_nonce",
	StepOutQMOptionalKE:                 "o_qm_optional_ke",
	StepOutQMOptionalIDs:                "o_qm_optional_ids",
	StepOutQMOptionalResponderLifetimeN: "o_qm_optional_responder_lifetime_n",
	StepOutNATOA:                        "o_natoa",
	StepOutQMWaitDone:                   "o_qm_wait_done",
	StepOutQMDone:                       "o_qm_done",
	StepOutGenHash:                      "o_gen_hash",
	StepOutNGMSAProposal:                "o_ngm_sa_proposal",
	StepOutNGMSAValues:                  "o_ngm_sa_values",
	StepOutNGMWaitDone:                  "o_ngm_wait_done",
	StepOutNGMDone:                      "o_ngm_done",
	StepOutCfgAttr:                      "o_cfg_attr",
	StepOutCfgWaitDone:                  "o_cfg_wait_done",
	StepOutCfgDone:                      "o_cfg_done",
	StepOutNDone:                        "o_n_done",
	StepOutDDone:                        "o_d_done",
}

// String returns the step's table name, e.g. "i_sa_proposal".
func (id StepID) String() string {
	if name, ok := stepNames[id]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, id)
}

// IsOutput reports whether id names an output step.
func (id StepID) IsOutput() bool {
	return id >= stepOutputBase
}

// AllSteps returns every known step identifier, input steps first.
func AllSteps() []StepID {
	ids := make([]StepID, 0, len(stepNames))
	for id := StepInVID; id <= StepInD; id++ {
		ids = append(ids, id)
	}
	for id := StepOutSAProposal; id <= StepOutDDone; id++ {
		ids = append(ids, id)
	}
	return ids
}
