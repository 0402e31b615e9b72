package service

import (
	"ims-backend/internal/model"
)

// AggregateStatus folds an envelope's item decisions into one overall
// status. Precedence, highest first:
//
//  1. any RETURNED item  → RETURNED
//  2. any FORWARDED item → FORWARDED
//  3. any PENDING item   → PENDING
//  4. all approval kinds → APPROVED
//  5. mix of approvals and rejections → APPROVED_WITH_EXCEPTIONS,
//     all rejections → REJECTED
//
// RETURNED must dominate: a pass with one returned item is waiting on the
// requester, no matter how many other items are already approved. Treating
// it like PENDING would leave the request stranded in the approver's queue
// instead of the requester's.
func AggregateStatus(decisions []model.ApprovalItemDecision) model.EnvelopeStatus {
	var anyReturned, anyForwarded, anyPending, anyApproved, anyRejected bool

	for _, d := range decisions {
		switch d.Decision {
		case model.ItemReturned:
			anyReturned = true
		case model.ItemForwarded:
			anyForwarded = true
		case model.ItemPending:
			anyPending = true
		case model.ItemRejected:
			anyRejected = true
		case model.ItemApprovedFromStock, model.ItemApprovedProcurement:
			anyApproved = true
		}
	}

	switch {
	case anyReturned:
		return model.EnvelopeReturned
	case anyForwarded:
		return model.EnvelopeForwarded
	case anyPending:
		return model.EnvelopePending
	case anyApproved && anyRejected:
		return model.EnvelopeApprovedWithErrata
	case anyApproved:
		return model.EnvelopeApproved
	default:
		return model.EnvelopeRejected
	}
}
