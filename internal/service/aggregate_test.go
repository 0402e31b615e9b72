package service

import (
	"testing"

	"ims-backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func decisionsOf(kinds ...model.ItemDecision) []model.ApprovalItemDecision {
	out := make([]model.ApprovalItemDecision, len(kinds))
	for i, k := range kinds {
		out[i] = model.ApprovalItemDecision{Decision: k}
	}
	return out
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		kinds []model.ItemDecision
		want  model.EnvelopeStatus
	}{
		{
			name:  "all approved from stock",
			kinds: []model.ItemDecision{model.ItemApprovedFromStock, model.ItemApprovedFromStock},
			want:  model.EnvelopeApproved,
		},
		{
			name:  "mixed approval kinds still approved",
			kinds: []model.ItemDecision{model.ItemApprovedFromStock, model.ItemApprovedProcurement},
			want:  model.EnvelopeApproved,
		},
		{
			name:  "approvals mixed with rejection",
			kinds: []model.ItemDecision{model.ItemApprovedFromStock, model.ItemRejected},
			want:  model.EnvelopeApprovedWithErrata,
		},
		{
			name:  "all rejected",
			kinds: []model.ItemDecision{model.ItemRejected, model.ItemRejected},
			want:  model.EnvelopeRejected,
		},
		{
			name:  "single returned dominates approvals and rejections",
			kinds: []model.ItemDecision{model.ItemApprovedFromStock, model.ItemRejected, model.ItemReturned},
			want:  model.EnvelopeReturned,
		},
		{
			name:  "returned dominates forwarded",
			kinds: []model.ItemDecision{model.ItemForwarded, model.ItemReturned},
			want:  model.EnvelopeReturned,
		},
		{
			name:  "forwarded dominates pending",
			kinds: []model.ItemDecision{model.ItemForwarded, model.ItemPending, model.ItemApprovedFromStock},
			want:  model.EnvelopeForwarded,
		},
		{
			name:  "pending dominates decided items",
			kinds: []model.ItemDecision{model.ItemPending, model.ItemApprovedProcurement, model.ItemRejected},
			want:  model.EnvelopePending,
		},
		{
			name:  "all pending",
			kinds: []model.ItemDecision{model.ItemPending, model.ItemPending},
			want:  model.EnvelopePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(decisionsOf(tt.kinds...)))
		})
	}
}

func TestAggregateStatusReturnedAlwaysWins(t *testing.T) {
	// Whatever else is in the envelope, one returned item puts the request
	// back in the requester's hands.
	others := []model.ItemDecision{
		model.ItemPending,
		model.ItemApprovedFromStock,
		model.ItemApprovedProcurement,
		model.ItemRejected,
		model.ItemForwarded,
	}
	for _, other := range others {
		got := AggregateStatus(decisionsOf(other, model.ItemReturned))
		assert.Equal(t, model.EnvelopeReturned, got, "returned + %s", other)
	}
}
