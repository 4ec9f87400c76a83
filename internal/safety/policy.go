package safety

import "github.com/aman-zulfiqar/pool-sentinel/pkg/alert"

// evaluatePolicy walks every policy predicate against report and
// accumulates a reason or warning for each one that fails, rather than
// returning on the first failure, so a caller always sees the complete
// picture of why a mint was flagged. DecisionSafe is true only if no
// predicate added a reason. Reason strings are the canonical tokens
// spec.md §6 "Policy semantics" names, plus "non_spl_token_program" for a
// mint owned by neither token program; the warning
// "unknown_extensions_present" is likewise outside that list. Downstream
// consumers (alert logs, dashboards) can match on them without
// re-deriving meaning.
//
// routeSupportsMemo reflects whether the route delivering this alert
// already attaches the memo instruction a memo-required mint needs;
// when it does, forbid_memo_required_if_route_no_memo no longer applies.
func evaluatePolicy(report *alert.TokenSafetyReport, policy alert.Policy, routeSupportsMemo bool) {
	report.Reasons = nil
	report.Warnings = nil

	if policy.RequireFreezeAuthorityNone && !report.FreezeAuthorityNone {
		report.Reasons = append(report.Reasons, "freeze_authority")
	}

	if !report.MintAuthorityNone {
		if policy.AllowMintAuthority {
			report.Warnings = append(report.Warnings, "mint_authority")
		} else {
			report.Reasons = append(report.Reasons, "mint_authority")
		}
	}

	if policy.ForbidNonTransferable && report.NonTransferable {
		report.Reasons = append(report.Reasons, "non_transferable")
	}
	if policy.ForbidDefaultFrozen && report.DefaultFrozen {
		report.Reasons = append(report.Reasons, "default_frozen")
	}
	if policy.ForbidPermanentDelegate && report.PermanentDelegate {
		report.Reasons = append(report.Reasons, "permanent_delegate")
	}
	if policy.ForbidTransferHook && report.TransferHook {
		report.Reasons = append(report.Reasons, "transfer_hook")
	}
	if policy.ForbidConfidential && report.Confidential {
		report.Reasons = append(report.Reasons, "confidential")
	}
	if report.MemoRequired && policy.ForbidMemoRequiredIfRouteNoMemo && !routeSupportsMemo {
		report.Reasons = append(report.Reasons, "memo_required")
	}

	if report.MintCloseAuthority {
		if policy.ForbidMintCloseAuthority {
			report.Reasons = append(report.Reasons, "mint_close_authority")
		} else {
			report.Warnings = append(report.Warnings, "mint_close_authority")
		}
	}

	if report.TransferFeeBps != nil && *report.TransferFeeBps > policy.MaxFeeBps {
		report.Reasons = append(report.Reasons, "transfer_fee")
	}
	if policy.MaxFeeAbsUnits != nil && report.TransferFeeMaxAbs != nil && *report.TransferFeeMaxAbs > *policy.MaxFeeAbsUnits {
		report.Reasons = append(report.Reasons, "transfer_fee_max")
	}

	if len(report.UnknownExtensions) > 0 {
		report.Warnings = append(report.Warnings, "unknown_extensions_present")
	}
	if report.Program == alert.TokenOther {
		// A mint not owned by either SPL Token program cannot be trusted to
		// follow either account layout this package decodes.
		report.Reasons = append(report.Reasons, "non_spl_token_program")
	}

	report.DecisionSafe = len(report.Reasons) == 0
}
