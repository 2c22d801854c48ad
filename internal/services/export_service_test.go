package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noltfinance/nolt-ops-api/internal/models"
)

func TestSelectExportFields(t *testing.T) {
	all, err := selectFields(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(queueExportFields))

	// selection keeps display order regardless of request order
	picked, err := selectFields([]string{"status", "reference"})
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "reference", picked[0].key)
	assert.Equal(t, "status", picked[1].key)

	// identity numbers are not exportable
	_, err = selectFields([]string{"bvn"})
	require.ErrorIs(t, err, ErrValidationFailed)

	// blank entries fall back to the full set
	full, err := selectFields([]string{"", "  "})
	require.NoError(t, err)
	assert.Len(t, full, len(queueExportFields))
}

func TestExportRowMatchesHeader(t *testing.T) {
	amount := "₦400,000"
	app := &models.Application{
		ReferenceID:    "LN-1001",
		Type:           models.TypeLoan,
		Status:         models.StatusInternalAudit,
		Amount:         "₦750,000",
		EligibleAmount: &amount,
		ApplicantName:  "Ada Obi",
		OwnerName:      "Femi Ojo",
	}

	fields, err := selectFields([]string{"reference", "eligible_amount", "owner"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Reference", "Eligible Amount", "Owner"}, exportHeader(fields))
	assert.Equal(t, []string{"LN-1001", "₦400,000", "Femi Ojo"}, exportRow(fields, app))
}
