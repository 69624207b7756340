package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNoteWithDefaults(t *testing.T) {
	n := NewNoteWithDefaults("p1", "progress")

	assert.Equal(t, "p1", n.PatientID)
	assert.Equal(t, "progress", n.TemplateType)
	assert.Equal(t, SyncStatusLocal, n.SyncStatus)
	assert.True(t, n.ConsentObtained)
	assert.True(t, n.Compliance.ExplicitConsent)
	assert.True(t, n.Compliance.RegionalConsent)
	assert.True(t, n.Compliance.DataMinimization)
	assert.Equal(t, DefaultRetentionDays, n.Compliance.RetentionDays)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestAuditRetention(t *testing.T) {
	assert.Equal(t, AuditRetentionProtectedDays, AuditRetention(true))
	assert.Equal(t, AuditRetentionDefaultDays, AuditRetention(false))
}
