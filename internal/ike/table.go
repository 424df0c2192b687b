package ike

// Field combinations used by the default table.
const (
	fieldsVIDNCertCR     = FieldVID | FieldN | FieldCert | FieldCR
	fieldsVIDNCert       = FieldVID | FieldN | FieldCert
	fieldsVIDNCertCRHash = fieldsVIDNCertCR | FieldHash
	fieldsNonceKE        = FieldNonce | FieldKE
	fieldsNonceIDKE      = FieldNonce | FieldID | FieldKE
	fieldsNonceIDKESA    = FieldNonce | FieldID | FieldKE | FieldSA
	fieldsHashNonceSA    = FieldHash | FieldNonce | FieldSA
	fieldsNIDKE          = FieldN | FieldID | FieldKE
)

// Shorthands for table rows.
//
//nolint:gochecknoglobals // immutable helpers for the table literal.
var (
	anyState    = AnyState()
	anyMethod   = AnyAuth()
	afterPhase1 = Phase1Done()
	authPSK     = WithAuth(AuthMethodPreSharedKey)
	authSig     = WithAuth(AuthMethodSignatures)
	authPKE     = WithAuth(AuthMethodPublicKeyEncryption)
	exMain      = OnExchange(ExchangeIdentityProtection)
	exAggr      = OnExchange(ExchangeAggressive)
	exQuick     = OnExchange(ExchangeQuickMode)
	exNGM       = OnExchange(ExchangeNewGroupMode)
	exCfg       = OnExchange(ExchangeTransaction)
	noFields    = Fields(FieldNone)
	anyFields   = AnyFields()
)

func st(s State) StateMatch { return InState(s) }

func steps(ids ...StepID) []StepID { return ids }

// DefaultTable returns the ISAKMP transition table: main and aggressive
// mode for pre-shared key, signature and public-key-encryption
// authentication, quick mode, new group mode, configuration mode and the
// informational exchange. Each call returns a fresh copy.
//
//nolint:funlen // table literal.
func DefaultTable() Table {
	return Table{
		// First packet received by a main mode responder. i_sa_proposal
		// sets the auth method.
		{
			State: st(StateStartSANegotiationR), NextState: StateMMSAR,
			Auth: anyMethod, Exchange: exMain,
			Mandatory: Fields(FieldSA), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInVID, StepInSAProposal, StepInCR, StepInCert,
				StepInStatusN, StepInPrivate),
			Output: steps(StepOutSAValues, StepOutOptionalCerts, StepOutVIDs,
				StepOutPrivate, StepOutNATD),
		},
		// First packet received by an aggressive mode responder.
		{
			State: st(StateStartSANegotiationR), NextState: StateAMSAR,
			Auth: anyMethod, Exchange: exAggr,
			Mandatory: Fields(fieldsNonceIDKESA), Optional: Fields(fieldsVIDNCertCRHash),
			Input: steps(StepInVID, StepInSAProposal, StepInNonce, StepInCert,
				StepInHashKey, StepInID, StepInKE, StepInCR, StepInStatusN,
				StepInPrivate),
			Output: steps(StepOutSAValues, StepOutKE, StepOutNonce, StepOutID,
				StepOutCerts, StepOutCR, StepOutSigOrHash, StepOutVIDs,
				StepOutStatusN, StepOutPrivate, StepOutCalcSKEYID),
		},

		// Initiator start.
		{
			State: st(StateStartSANegotiationI), NextState: StateMMSAI,
			Auth: authPKE, Exchange: exMain,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutSAProposal, StepOutCR, StepOutVIDs, StepOutPrivate),
		},
		{
			State: st(StateStartSANegotiationI), NextState: StateMMSAI,
			Auth: anyMethod, Exchange: exMain,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutSAProposal, StepOutVIDs, StepOutPrivate),
		},
		{
			State: st(StateStartSANegotiationI), NextState: StateAMSAI,
			Auth: authPKE, Exchange: exAggr,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutSAProposal, StepOutHashKey, StepOutKE,
				StepOutNonce, StepOutID, StepOutCerts, StepOutCR, StepOutVIDs,
				StepOutPrivate),
		},
		{
			State: st(StateStartSANegotiationI), NextState: StateAMSAI,
			Auth: authSig, Exchange: exAggr,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutSAProposal, StepOutKE, StepOutNonce, StepOutID,
				StepOutCerts, StepOutCR, StepOutVIDs, StepOutPrivate),
		},
		{
			State: st(StateStartSANegotiationI), NextState: StateAMSAI,
			Auth: authPSK, Exchange: exAggr,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutSAProposal, StepOutKE, StepOutNonce, StepOutID,
				StepOutVIDs, StepOutPrivate),
		},

		// Waiting for done. Any packet (typically the first phase 2
		// message) moves the phase 1 negotiation to DONE.
		{
			State: st(StateMMFinalR), NextState: StateDone,
			Auth: anyMethod, Exchange: exMain, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutDone),
		},
		{
			State: st(StateMMDoneI), NextState: StateDone,
			Auth: anyMethod, Exchange: exMain, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutDone),
		},
		{
			State: st(StateAMFinalI), NextState: StateDone,
			Auth: anyMethod, Exchange: exAggr, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutDone),
		},
		{
			State: st(StateAMDoneR), NextState: StateDone,
			Auth: anyMethod, Exchange: exAggr, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutDone),
		},

		// Main mode, signatures.
		{
			State: st(StateMMSAI), NextState: StateMMKEI,
			Auth: authSig, Exchange: exMain,
			Mandatory: Fields(FieldSA), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInSAValue, StepInCR, StepInCert, StepInStatusN,
				StepInVID, StepInPrivate),
			Output: steps(StepOutKE, StepOutNonce, StepOutCR, StepOutPrivate,
				StepOutNATD),
		},
		{
			State: st(StateMMSAR), NextState: StateMMKER,
			Auth: authSig, Exchange: exMain,
			Mandatory: Fields(fieldsNonceKE), Optional: Fields(fieldsVIDNCertCR | FieldNATD),
			Input: steps(StepInNonce, StepInKE, StepInCR, StepInStatusN,
				StepInCert, StepInVID, StepInPrivate, StepInNATD),
			Output: steps(StepOutKE, StepOutNonce, StepOutCR, StepOutPrivate,
				StepOutCalcSKEYID, StepOutNATD),
		},
		{
			State: st(StateMMKEI), NextState: StateMMFinalI,
			Auth: authSig, Exchange: exMain,
			Mandatory: Fields(fieldsNonceKE), Optional: Fields(fieldsVIDNCertCR | FieldNATD),
			Input: steps(StepInNonce, StepInKE, StepInCR, StepInStatusN,
				StepInCert, StepInVID, StepInPrivate, StepInNATD,
				StepInNATTPortJump),
			Output: steps(StepOutID, StepOutCerts, StepOutSig, StepOutStatusN,
				StepOutPrivate, StepOutEncrypt),
		},
		{
			State: st(StateMMKER), NextState: StateMMFinalR,
			Auth: authSig, Exchange: exMain,
			Mandatory: Fields(FieldSig | FieldID), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInEncrypt, StepInCert, StepInID, StepInSig,
				StepInStatusN, StepInCR, StepInVID, StepInNATTPortJump,
				StepInPrivate),
			Output: steps(StepOutID, StepOutCerts, StepOutSig, StepOutStatusN,
				StepOutPrivate, StepOutEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateMMFinalI), NextState: StateMMDoneI,
			Auth: authSig, Exchange: exMain,
			Mandatory: Fields(FieldSig | FieldID), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInEncrypt, StepInCert, StepInID, StepInSig,
				StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Aggressive mode, signatures.
		{
			State: st(StateAMSAI), NextState: StateAMFinalI,
			Auth: authSig, Exchange: exAggr,
			Mandatory: Fields(fieldsNonceIDKESA | FieldSig), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInSAValue, StepInNonce, StepInID, StepInKE,
				StepInCert, StepInSig, StepInCR, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutCerts, StepOutSig, StepOutStatusN,
				StepOutPrivate, StepOutOptionalEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateAMSAR), NextState: StateAMDoneR,
			Auth: authSig, Exchange: exAggr,
			Mandatory: Fields(FieldSig), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInCert, StepInSig, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Main mode, public key encryption.
		{
			State: st(StateMMSAI), NextState: StateMMKEI,
			Auth: authPKE, Exchange: exMain,
			Mandatory: Fields(FieldSA), Optional: Fields(fieldsVIDNCertCR | FieldNATD),
			Input: steps(StepInSAValue, StepInCR, StepInCert, StepInStatusN,
				StepInVID, StepInPrivate, StepInNATD, StepInNATTPortJump),
			Output: steps(StepOutHashKey, StepOutNonce, StepOutKE, StepOutID,
				StepOutOptionalCerts, StepOutPrivate, StepOutNATD),
		},
		{
			State: st(StateMMSAR), NextState: StateMMKER,
			Auth: authPKE, Exchange: exMain,
			Mandatory: Fields(fieldsNonceIDKE), Optional: Fields(fieldsVIDNCertCRHash | FieldNATD),
			Input: steps(StepInNonce, StepInHashKey, StepInCert, StepInID,
				StepInKE, StepInCR, StepInStatusN, StepInVID, StepInPrivate,
				StepInNATD, StepInNATTPortJump),
			Output: steps(StepOutNonce, StepOutKE, StepOutID, StepOutCR,
				StepOutPrivate, StepOutCalcSKEYID),
		},
		{
			State: st(StateMMKEI), NextState: StateMMFinalI,
			Auth: authPKE, Exchange: exMain,
			Mandatory: Fields(fieldsNonceIDKE), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInNonce, StepInCert, StepInID, StepInKE, StepInCR,
				StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutHash, StepOutStatusN, StepOutCerts,
				StepOutPrivate, StepOutEncrypt),
		},
		{
			State: st(StateMMKER), NextState: StateMMFinalR,
			Auth: authPKE, Exchange: exMain,
			Mandatory: Fields(FieldHash), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInEncrypt, StepInCert, StepInHash, StepInStatusN,
				StepInVID, StepInPrivate),
			Output: steps(StepOutHash, StepOutStatusN, StepOutCerts,
				StepOutPrivate, StepOutEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateMMFinalI), NextState: StateMMDoneI,
			Auth: authPKE, Exchange: exMain,
			Mandatory: Fields(FieldHash), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInEncrypt, StepInCert, StepInHash, StepInStatusN,
				StepInVID, StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Aggressive mode, public key encryption.
		{
			State: st(StateAMSAI), NextState: StateAMFinalI,
			Auth: authPKE, Exchange: exAggr,
			Mandatory: Fields(fieldsNonceIDKESA | FieldHash), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInSAValue, StepInNonce, StepInCert, StepInID,
				StepInKE, StepInHash, StepInCR, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutHash, StepOutCerts, StepOutStatusN,
				StepOutPrivate, StepOutOptionalEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateAMSAR), NextState: StateAMDoneR,
			Auth: authPKE, Exchange: exAggr,
			Mandatory: Fields(FieldHash), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInHash, StepInCert, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Main mode, pre-shared key.
		{
			State: st(StateMMSAI), NextState: StateMMKEI,
			Auth: authPSK, Exchange: exMain,
			Mandatory: Fields(FieldSA), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInSAValue, StepInCR, StepInCert, StepInStatusN,
				StepInVID, StepInPrivate),
			Output: steps(StepOutKE, StepOutNonce, StepOutPrivate, StepOutNATD),
		},
		{
			State: st(StateMMSAR), NextState: StateMMKER,
			Auth: authPSK, Exchange: exMain,
			Mandatory: Fields(fieldsNonceKE), Optional: Fields(fieldsVIDNCertCR | FieldNATD),
			Input: steps(StepInNonce, StepInKE, StepInCR, StepInCert,
				StepInNATD, StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutKE, StepOutNonce, StepOutGetPreSharedKey,
				StepOutPrivate, StepOutCalcSKEYID, StepOutNATD),
		},
		{
			State: st(StateMMKEI), NextState: StateMMFinalI,
			Auth: authPSK, Exchange: exMain,
			Mandatory: Fields(fieldsNonceKE), Optional: Fields(fieldsVIDNCertCR | FieldNATD),
			Input: steps(StepInNonce, StepInKE, StepInCR, StepInCert,
				StepInNATD, StepInNATTPortJump, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutID, StepOutHash, StepOutStatusN,
				StepOutPrivate, StepOutEncrypt),
		},
		{
			State: st(StateMMKER), NextState: StateMMFinalR,
			Auth: authPSK, Exchange: exMain,
			Mandatory: Fields(FieldHash | FieldID), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInEncrypt, StepInID, StepInHash, StepInCert,
				StepInNATTPortJump, StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutID, StepOutHash, StepOutStatusN,
				StepOutPrivate, StepOutEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateMMFinalI), NextState: StateMMDoneI,
			Auth: authPSK, Exchange: exMain,
			Mandatory: Fields(FieldHash | FieldID), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInEncrypt, StepInID, StepInHash, StepInCert,
				StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Aggressive mode, pre-shared key.
		{
			State: st(StateAMSAI), NextState: StateAMFinalI,
			Auth: authPSK, Exchange: exAggr,
			Mandatory: Fields(fieldsNonceIDKESA | FieldHash), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInSAValue, StepInNonce, StepInID, StepInKE,
				StepInHash, StepInCert, StepInStatusN, StepInVID, StepInPrivate),
			Output: steps(StepOutHash, StepOutStatusN, StepOutPrivate,
				StepOutOptionalEncrypt, StepOutWaitDone),
		},
		{
			State: st(StateAMSAR), NextState: StateAMDoneR,
			Auth: authPSK, Exchange: exAggr,
			Mandatory: Fields(FieldHash), Optional: Fields(fieldsVIDNCert),
			Input: steps(StepInHash, StepInCert, StepInStatusN, StepInVID,
				StepInPrivate),
			Output: steps(StepOutCopyIV, StepOutWaitDone),
		},

		// Main mode initiator, auth method not yet known. i_sa_value reads
		// the responder's choice and i_retry_now re-matches against the
		// method-specific rules above.
		{
			State: st(StateMMSAI), NextState: StateMMSAI,
			Auth: anyMethod, Exchange: exMain,
			Mandatory: Fields(FieldSA), Optional: Fields(fieldsVIDNCertCR),
			Input: steps(StepInSAValue, StepInRetryNow),
		},

		// Quick mode. Requires a completed phase 1.
		{
			State: st(StateStartQMI), NextState: StateQMHashSAI,
			Auth: afterPhase1, Exchange: exQuick,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutQMHash1, StepOutQMSAProposals, StepOutQMNonce,
				StepOutQMOptionalKE, StepOutQMOptionalIDs, StepOutNATOA,
				StepOutPrivate, StepOutEncrypt),
		},
		{
			State: st(StateStartQMR), NextState: StateQMHashSAR,
			Auth: afterPhase1, Exchange: exQuick,
			Mandatory: Fields(fieldsHashNonceSA), Optional: Fields(fieldsNIDKE | FieldNATOA),
			Input: steps(StepInEncrypt, StepInQMHash1, StepInQMNonce,
				StepInQMIDs, StepInNATOA, StepInQMKE, StepInQMSAProposals,
				StepInStatusN, StepInPrivate),
			// Responder lifetime must follow sa_values.
			Output: steps(StepOutQMHash2, StepOutQMSAValues, StepOutQMNonce,
				StepOutQMOptionalKE, StepOutQMOptionalIDs,
				StepOutQMOptionalResponderLifetimeN, StepOutPrivate,
				StepOutNATOA, StepOutEncrypt),
		},
		{
			State: st(StateQMHashSAI), NextState: StateQMHashI,
			Auth: afterPhase1, Exchange: exQuick,
			Mandatory: Fields(fieldsHashNonceSA), Optional: Fields(fieldsNIDKE | FieldNATOA),
			Input: steps(StepInEncrypt, StepInQMHash2, StepInQMSAValues,
				StepInQMNonce, StepInQMIDs, StepInQMKE, StepInStatusN,
				StepInPrivate, StepInNATOA),
			Output: steps(StepOutQMHash3, StepOutPrivate, StepOutEncrypt,
				StepOutQMWaitDone),
		},
		{
			State: st(StateQMHashSAR), NextState: StateQMDoneR,
			Auth: afterPhase1, Exchange: exQuick,
			Mandatory: Fields(FieldHash), Optional: Fields(FieldN | FieldNATOA),
			Input: steps(StepInEncrypt, StepInQMHash3, StepInStatusN,
				StepInPrivate, StepInNATOA),
			Output: steps(StepOutQMWaitDone),
		},
		{
			State: st(StateQMHashI), NextState: StateDone,
			Auth: afterPhase1, Exchange: exQuick, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutQMDone),
		},
		{
			State: st(StateQMDoneR), NextState: StateDone,
			Auth: afterPhase1, Exchange: exQuick, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutQMDone),
		},

		// New group mode.
		{
			State: st(StateStartNGMI), NextState: StateNGMHashSAI,
			Auth: afterPhase1, Exchange: exNGM,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutGenHash, StepOutNGMSAProposal, StepOutPrivate,
				StepOutEncrypt),
		},
		{
			State: st(StateStartNGMR), NextState: StateNGMHashSAR,
			Auth: afterPhase1, Exchange: exNGM,
			Mandatory: Fields(FieldHash | FieldSA), Optional: noFields,
			Input: steps(StepInEncrypt, StepInGenHash, StepInNGMSAProposal,
				StepInPrivate),
			Output: steps(StepOutGenHash, StepOutNGMSAValues, StepOutPrivate,
				StepOutEncrypt, StepOutNGMWaitDone),
		},
		{
			State: st(StateNGMHashSAI), NextState: StateNGMDoneI,
			Auth: afterPhase1, Exchange: exNGM,
			Mandatory: Fields(FieldHash | FieldSA), Optional: noFields,
			Input: steps(StepInEncrypt, StepInGenHash, StepInNGMSAValues,
				StepInPrivate),
			Output: steps(StepOutNGMWaitDone),
		},
		{
			State: st(StateNGMHashSAR), NextState: StateDone,
			Auth: afterPhase1, Exchange: exNGM, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutNGMDone),
		},
		{
			State: st(StateNGMDoneI), NextState: StateDone,
			Auth: afterPhase1, Exchange: exNGM, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutNGMDone),
		},

		// Configuration mode after phase 1.
		{
			State: st(StateStartCfgI), NextState: StateCfgHashAttrI,
			Auth: afterPhase1, Exchange: exCfg,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutGenHash, StepOutCfgAttr, StepOutPrivate,
				StepOutEncrypt),
		},
		{
			State: st(StateStartCfgR), NextState: StateCfgHashAttrR,
			Auth: afterPhase1, Exchange: exCfg,
			Mandatory: Fields(FieldAttr | FieldHash), Optional: noFields,
			Input: steps(StepInEncrypt, StepInGenHash, StepInCfgAttr,
				StepInPrivate),
			Output: steps(StepOutGenHash, StepOutCfgAttr, StepOutPrivate,
				StepOutEncrypt, StepOutCfgWaitDone),
		},
		{
			State: st(StateCfgHashAttrI), NextState: StateCfgDoneI,
			Auth: afterPhase1, Exchange: exCfg,
			Mandatory: Fields(FieldAttr | FieldHash), Optional: noFields,
			Input: steps(StepInEncrypt, StepInGenHash, StepInCfgAttr,
				StepInPrivate),
			Output: steps(StepOutCfgWaitDone),
		},
		{
			State: st(StateCfgHashAttrR), NextState: StateDone,
			Auth: afterPhase1, Exchange: exCfg, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutCfgDone),
		},
		{
			State: st(StateCfgDoneI), NextState: StateDone,
			Auth: afterPhase1, Exchange: exCfg, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutCfgDone),
		},

		// Stand-alone configuration mode, no phase 1 protection.
		{
			State: st(StateStartCfgI), NextState: StateCfgHashAttrI,
			Auth: anyMethod, Exchange: exCfg,
			Mandatory: noFields, Optional: noFields,
			Output: steps(StepOutCfgAttr, StepOutPrivate),
		},
		{
			State: st(StateStartCfgR), NextState: StateCfgHashAttrR,
			Auth: anyMethod, Exchange: exCfg,
			Mandatory: Fields(FieldAttr), Optional: noFields,
			Input:  steps(StepInCfgAttr, StepInPrivate),
			Output: steps(StepOutCfgAttr, StepOutPrivate, StepOutCfgWaitDone),
		},
		{
			State: st(StateCfgHashAttrI), NextState: StateCfgDoneI,
			Auth: anyMethod, Exchange: exCfg,
			Mandatory: Fields(FieldAttr), Optional: noFields,
			Input:  steps(StepInCfgAttr, StepInPrivate),
			Output: steps(StepOutCfgWaitDone),
		},
		{
			State: st(StateCfgHashAttrR), NextState: StateDone,
			Auth: anyMethod, Exchange: exCfg, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutCfgDone),
		},
		{
			State: st(StateCfgDoneI), NextState: StateDone,
			Auth: anyMethod, Exchange: exCfg, Mandatory: anyFields, Optional: noFields,
			Output: steps(StepOutCfgDone),
		},

		// Informational: protected notify and delete after phase 1.
		{
			State: anyState, NextState: StateDone,
			Auth: afterPhase1, Exchange: AnyExchange(),
			Mandatory: Fields(FieldN | FieldHash), Optional: anyFields,
			Input:  steps(StepInEncrypt, StepInGenHash, StepInN, StepInPrivate),
			Output: steps(StepOutNDone),
		},
		{
			State: st(StateDone), NextState: StateDone,
			Auth: afterPhase1, Exchange: AnyExchange(),
			Mandatory: Fields(FieldD | FieldHash), Optional: anyFields,
			Input:  steps(StepInEncrypt, StepInGenHash, StepInD, StepInPrivate),
			Output: steps(StepOutDDone),
		},

		// Informational: unprotected notify and delete in any state.
		{
			State: anyState, NextState: StateDone,
			Auth: anyMethod, Exchange: AnyExchange(),
			Mandatory: Fields(FieldN), Optional: anyFields,
			Input:  steps(StepInN, StepInPrivate),
			Output: steps(StepOutNDone),
		},
		{
			State: anyState, NextState: StateDone,
			Auth: anyMethod, Exchange: AnyExchange(),
			Mandatory: Fields(FieldD), Optional: anyFields,
			Input:  steps(StepInD, StepInPrivate),
			Output: steps(StepOutDDone),
		},
	}
}
