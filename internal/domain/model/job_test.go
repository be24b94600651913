package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusValid(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusIgnored} {
		assert.True(t, s.Valid(), "status %q", s)
	}
	assert.False(t, JobStatus("queued").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusIgnored.Terminal())
}

func TestJobStatusActive(t *testing.T) {
	assert.True(t, JobStatusPending.Active())
	assert.True(t, JobStatusProcessing.Active())
	assert.False(t, JobStatusCompleted.Active())
	assert.False(t, JobStatusIgnored.Active())
}

func TestJobStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		name string
		from JobStatus
		to   JobStatus
		ok   bool
	}{
		{"pending to processing", JobStatusPending, JobStatusProcessing, true},
		{"pending to ignored", JobStatusPending, JobStatusIgnored, true},
		{"pending to completed skips processing", JobStatusPending, JobStatusCompleted, false},
		{"pending to failed skips processing", JobStatusPending, JobStatusFailed, false},
		{"processing to completed", JobStatusProcessing, JobStatusCompleted, true},
		{"processing to failed", JobStatusProcessing, JobStatusFailed, true},
		{"processing to ignored", JobStatusProcessing, JobStatusIgnored, true},
		{"processing back to pending", JobStatusProcessing, JobStatusPending, false},
		{"completed is terminal", JobStatusCompleted, JobStatusPending, false},
		{"failed is terminal", JobStatusFailed, JobStatusProcessing, false},
		{"ignored is terminal", JobStatusIgnored, JobStatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestCreateJobRequestValidate(t *testing.T) {
	t.Run("valid normalized request", func(t *testing.T) {
		req := CreateJobRequest{CNPJ: "11222333000181", CompanyName: "ACME"}
		require.NoError(t, req.Validate())
	})

	t.Run("unnormalized length rejected", func(t *testing.T) {
		req := CreateJobRequest{CNPJ: "123"}
		require.Error(t, req.Validate())
	})

	t.Run("formatted cnpj rejected", func(t *testing.T) {
		req := CreateJobRequest{CNPJ: "11.222.333/0001"}
		require.Error(t, req.Validate())
	})
}
