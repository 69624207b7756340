package deident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimishnaByAndy/clinicalvault/internal/cryptox"
)

func TestDeidentify_MinimalRemovesIdentifiers(t *testing.T) {
	text := "Health card TREM 1234 5678, SIN 123-456-789."

	result, err := Deidentify(text, LevelMinimal)
	require.NoError(t, err)

	assert.NotContains(t, result.CleanedText, "TREM 1234 5678")
	assert.NotContains(t, result.CleanedText, "123-456-789")
	assert.Contains(t, result.CleanedText, "[HEALTH_ID_1]")
	assert.Contains(t, result.CleanedText, "[SIN_1]")
	require.Len(t, result.RemovedEntities, 2)
	assert.Equal(t, CategoryHealthID, result.RemovedEntities[0].Category)
	assert.Equal(t, "TREM 1234 5678", result.RemovedEntities[0].Original)
	assert.InDelta(t, 0.95, result.RemovedEntities[0].Confidence, 1e-9)
	assert.Equal(t, cryptox.HashText(text), result.OriginalHash)
	assert.Equal(t, "minimal", result.Level)
}

func TestDeidentify_MinimalKeepsNamesAndEmails(t *testing.T) {
	text := "Seen by Dr. Tremblay, reachable at jean@example.com."

	result, err := Deidentify(text, LevelMinimal)
	require.NoError(t, err)

	assert.Contains(t, result.CleanedText, "Dr. Tremblay")
	assert.Contains(t, result.CleanedText, "jean@example.com")
	assert.Empty(t, result.RemovedEntities)
}

func TestDeidentify_FederalAddsContactInfo(t *testing.T) {
	text := "Dr. Tremblay called 514-555-1234 and wrote to jean@example.com."

	result, err := Deidentify(text, LevelFederal)
	require.NoError(t, err)

	assert.NotContains(t, result.CleanedText, "Tremblay")
	assert.NotContains(t, result.CleanedText, "jean@example.com")
	assert.NotContains(t, result.CleanedText, "514-555-1234")
	assert.Contains(t, result.CleanedText, "[NAME_1]")
	assert.Contains(t, result.CleanedText, "[EMAIL_1]")
	assert.Contains(t, result.CleanedText, "[PHONE_1]")
}

func TestDeidentify_TokensNumberedPerCategory(t *testing.T) {
	text := "Contact jean@example.com or marie@example.com."

	result, err := Deidentify(text, LevelFederal)
	require.NoError(t, err)

	assert.Contains(t, result.CleanedText, "[EMAIL_1]")
	assert.Contains(t, result.CleanedText, "[EMAIL_2]")
}

func TestDeidentify_NumberingRestartsPerCall(t *testing.T) {
	r1, err := Deidentify("Write to jean@example.com.", LevelFederal)
	require.NoError(t, err)
	r2, err := Deidentify("Write to marie@example.com.", LevelFederal)
	require.NoError(t, err)

	assert.Contains(t, r1.CleanedText, "[EMAIL_1]")
	assert.Contains(t, r2.CleanedText, "[EMAIL_1]")
	assert.NotContains(t, r2.CleanedText, "[EMAIL_2]")
}

func TestDeidentify_RegionalGeneralizesDates(t *testing.T) {
	text := "Follow-up on 2026-03-15 and again on 2026-04-01 at H2X 1Y4."

	result, err := Deidentify(text, LevelRegional)
	require.NoError(t, err)

	// generalized, not numbered: both dates collapse to the same token
	assert.Equal(t, 2, strings.Count(result.CleanedText, "[DATE]"))
	assert.NotContains(t, result.CleanedText, "[DATE_1]")
	assert.NotContains(t, result.CleanedText, "2026-03-15")
	assert.Contains(t, result.CleanedText, "[POSTAL_1]")
}

func TestDeidentify_FullAnonymousRemovesLocationsAndYears(t *testing.T) {
	text := "Treated in Montreal at Sacred Hospital since 2019."

	result, err := Deidentify(text, LevelFullAnonymous)
	require.NoError(t, err)

	assert.NotContains(t, result.CleanedText, "Montreal")
	assert.NotContains(t, result.CleanedText, "2019")
	assert.Contains(t, result.CleanedText, "[LOCATION_")
	assert.Contains(t, result.CleanedText, "[DATE_")
}

func TestDeidentify_UnknownLevel(t *testing.T) {
	_, err := Deidentify("text", Level(42))
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestVerifyCompliance_UnknownLevelFails(t *testing.T) {
	// a level with no detectors cannot vouch for anything
	assert.False(t, VerifyCompliance("text without identifiers", Level(42)))
}

func TestVerifyCompliance_CleanedTextPasses(t *testing.T) {
	text := "Dr. Tremblay, card TREM 1234 5678, jean@example.com, 514-555-1234, " +
		"12 Oak Street, H2X 1Y4, seen 2026-03-15 in Montreal at General Hospital since 2019."

	for _, level := range []Level{LevelMinimal, LevelFederal, LevelRegional, LevelFullAnonymous} {
		t.Run(level.String(), func(t *testing.T) {
			assert.False(t, VerifyCompliance(text, level))

			result, err := Deidentify(text, level)
			require.NoError(t, err)
			assert.True(t, VerifyCompliance(result.CleanedText, level),
				"residual identifier in %q", result.CleanedText)
		})
	}
}

func TestVerifyCompliance_Deterministic(t *testing.T) {
	text := "Card TREM 1234 5678 belongs to Dr. Tremblay."

	r1, err := Deidentify(text, LevelFederal)
	require.NoError(t, err)
	r2, err := Deidentify(text, LevelFederal)
	require.NoError(t, err)
	assert.Equal(t, r1.CleanedText, r2.CleanedText)
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"minimal":        LevelMinimal,
		"federal":        LevelFederal,
		"regional":       LevelRegional,
		"full_anonymous": LevelFullAnonymous,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseLevel("paranoid")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}
