package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionHandler_CreatePayable(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/ledger/transactions", gin.H{
		"type":        "PAYABLE",
		"description": "Cleaning service",
		"amount":      "480.00",
		"due_date":    "2026-10-01T00:00:00Z",
		"allocations": []gin.H{
			{"cost_center_id": env.costCenter.String(), "percentage": "100"},
		},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DRAFT"`)
	assert.Empty(t, env.dispatcher.sent)
}

func TestTransactionHandler_CreateAndSubmit(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/ledger/transactions", gin.H{
		"type":        "PAYABLE",
		"description": "Cleaning service",
		"amount":      "480.00",
		"due_date":    "2026-10-01T00:00:00Z",
		"allocations": []gin.H{
			{"cost_center_id": env.costCenter.String(), "percentage": "100"},
		},
		"submit_for_approval": true,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PENDING_APPROVAL"`)

	// the approver got a working link in the same request
	require.Len(t, env.dispatcher.sent, 1)
	state := env.do(http.MethodGet, "/api/v1/approvals/"+env.dispatcher.sent[0].Token, nil)
	assert.Equal(t, http.StatusOK, state.Code)
}

func TestTransactionHandler_CreateInstallmentSeries(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/ledger/transactions", gin.H{
		"type":        "PAYABLE",
		"description": "New laptops",
		"amount":      "1000.00",
		"due_date":    "2026-10-01T00:00:00Z",
		"allocations": []gin.H{
			{"cost_center_id": env.costCenter.String(), "percentage": "100"},
		},
		"installments":        3,
		"submit_for_approval": true,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	body := w.Body.String()
	// floor split, remainder on the last installment
	assert.Contains(t, body, `"amount":"333.33"`)
	assert.Contains(t, body, `"amount":"333.34"`)
	// only the first installment is routed for approval
	assert.Contains(t, body, `"status":"PENDING_APPROVAL"`)
	assert.Contains(t, body, `"status":"DRAFT"`)
	assert.Len(t, env.dispatcher.sent, 1)
}

func TestTransactionHandler_CreateRejectsBadAllocation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/ledger/transactions", gin.H{
		"type":        "PAYABLE",
		"description": "Bad split",
		"amount":      "100.00",
		"due_date":    "2026-10-01T00:00:00Z",
		"allocations": []gin.H{
			{"cost_center_id": env.costCenter.String(), "percentage": "60"},
		},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_ALLOCATION_INVALID")
}
