package deident

import "regexp"

// Identifier categories. Each category has one fixed pattern and one fixed
// confidence score; nothing here is learned.
const (
	CategoryHealthID   = "health_id"
	CategoryNationalID = "national_id"
	CategoryCard       = "payment_card"
	CategoryName       = "name"
	CategoryEmail      = "email"
	CategoryPhone      = "phone"
	CategoryPostal     = "postal_code"
	CategoryAddress    = "street_address"
	CategoryFinancial  = "financial"
	CategoryDate       = "date"
	CategoryLocation   = "location"
)

// rule binds one detector to its replacement token tag.
type rule struct {
	category   string
	token      string
	confidence float64
	re         *regexp.Regexp

	// generalize substitutes a single unnumbered token for every match
	// (used for date generalization at the regional tier).
	generalize bool
}

// Fixed, documented detection patterns. The detection order within a call is
// fixed (health-ID, names, contact info, addresses, financial, dates,
// locations) because later passes operate on text already partially redacted
// by earlier passes. Changing the order changes results and is a breaking
// change.
var (
	// Provincial health-insurance numbers: four letters followed by eight
	// digits, optionally space-grouped (e.g. "ABCD 1234 5678").
	reHealthID = regexp.MustCompile(`\b[A-Z]{4}\s?\d{4}\s?\d{4}\b`)

	// National identity numbers: 3-3-3 grouped (SIN) or 3-2-4 dashed (SSN).
	reNationalID = regexp.MustCompile(`\b\d{3}[-\s]\d{3}[-\s]\d{3}\b|\b\d{3}-\d{2}-\d{4}\b`)

	// Payment cards: 13-16 digits in groups of four.
	reCard = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{1,4}\b`)

	// Person names: honorific-anchored, or two adjacent capitalized words.
	reName = regexp.MustCompile(`\b(?:Dr|Mr|Mrs|Ms|Mme|Mlle)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?|\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)

	reEmail = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	rePhone = regexp.MustCompile(`\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

	// Postal codes: Canadian A1A 1A1 or US ZIP/ZIP+4.
	rePostal = regexp.MustCompile(`\b[A-Za-z]\d[A-Za-z]\s?\d[A-Za-z]\d\b|\b\d{5}(?:-\d{4})?\b`)

	reAddress = regexp.MustCompile(`\b\d+\s+[A-Za-z][A-Za-z\s]*?(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Rue|Chemin)\b`)

	reFinancial = regexp.MustCompile(`(?i)\b(?:account|acct|iban|routing|transit)\s*(?:no|number|#)?\s*[:#]?\s*\d[\d\s-]{4,}\b`)

	// Specific calendar dates: numeric forms and written month forms.
	reDate = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,\s*\d{4})?\b`)

	// Residual temporal markers removed only at the full-anonymous tier:
	// bare years and bare month names.
	reDateResidual = regexp.MustCompile(`\b(?:19|20)\d{2}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\b`)

	// Location names: a fixed list of regional place names plus named care
	// facilities.
	reLocation = regexp.MustCompile(`\b(?:Montreal|Montréal|Quebec|Québec|Laval|Gatineau|Sherbrooke|Toronto|Ottawa|Vancouver)\b|\b[A-Z][a-z]+\s+(?:Hospital|Clinic|Hôpital|Clinique)\b`)
)

// rulesFor returns the ordered detector list for a tier. The switch is
// exhaustive over the closed Level set.
func rulesFor(level Level) []rule {
	var rules []rule

	rules = append(rules,
		rule{category: CategoryHealthID, token: "HEALTH_ID", confidence: 0.95, re: reHealthID},
		rule{category: CategoryNationalID, token: "SIN", confidence: 0.9, re: reNationalID},
		rule{category: CategoryCard, token: "CARD", confidence: 0.9, re: reCard},
	)
	if level == LevelMinimal {
		return rules
	}

	rules = append(rules,
		rule{category: CategoryName, token: "NAME", confidence: 0.7, re: reName},
		rule{category: CategoryEmail, token: "EMAIL", confidence: 0.99, re: reEmail},
		rule{category: CategoryPhone, token: "PHONE", confidence: 0.9, re: rePhone},
	)
	if level == LevelFederal {
		return rules
	}

	rules = append(rules,
		rule{category: CategoryPostal, token: "POSTAL", confidence: 0.85, re: rePostal},
		rule{category: CategoryAddress, token: "ADDRESS", confidence: 0.8, re: reAddress},
		rule{category: CategoryFinancial, token: "FINANCIAL", confidence: 0.8, re: reFinancial},
	)

	switch level {
	case LevelRegional:
		return append(rules,
			rule{category: CategoryDate, token: "DATE", confidence: 0.85, re: reDate, generalize: true})
	case LevelFullAnonymous:
		return append(rules,
			rule{category: CategoryDate, token: "DATE", confidence: 0.85, re: reDate},
			rule{category: CategoryDate, token: "DATE", confidence: 0.85, re: reDateResidual},
			rule{category: CategoryLocation, token: "LOCATION", confidence: 0.6, re: reLocation},
		)
	default:
		return nil
	}
}
