package models

// RemovedEntity describes one identifier detected and replaced during
// de-identification.
type RemovedEntity struct {
	// Category names the identifier type, e.g. "health_id", "email".
	Category string `json:"category"`

	// Original is the matched span of the input text.
	Original string `json:"original"`

	// Replacement is the token substituted for the span, e.g. "[EMAIL_1]".
	Replacement string `json:"replacement"`

	// Confidence is the fixed per-category detection confidence, 0.0–1.0.
	Confidence float64 `json:"confidence"`
}

// DeidentificationResult is the transient output of one Deidentify call.
// It is not persisted unless the caller chooses to store it.
type DeidentificationResult struct {
	// OriginalHash is the sha256 of the input text, for later correlation.
	OriginalHash string `json:"original_hash"`

	// CleanedText is the input with every detected identifier replaced.
	CleanedText string `json:"cleaned_text"`

	// RemovedEntities lists replacements in detection order.
	RemovedEntities []RemovedEntity `json:"removed_entities"`

	// Level is the compliance tier the text was processed under.
	Level string `json:"level"`
}
