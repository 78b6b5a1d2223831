package analytics

import (
	"strings"

	"github.com/seentics/seentics-go/internal/page"
)

// Field names matching any of these fragments are dropped from captured
// form data. Matching is case-insensitive and substring-based so
// "user_password_confirm" and "CreditCardNumber" are both caught.
var sensitiveFieldFragments = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"credit", "card", "cvv", "cvc", "expiry",
	"ssn", "social_security", "social security",
	"pin", "security_answer", "security answer",
	"account_number", "routing", "iban", "swift",
	"license", "passport", "dob", "birth",
}

const maxCapturedValueLength = 100

func isSensitiveField(name string) bool {
	lowered := strings.ToLower(name)
	for _, fragment := range sensitiveFieldFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// captureFormData snapshots submit-time field values with redaction:
// password inputs are skipped outright, sensitively named fields are
// dropped, and checkbox/radio values are only captured when checked.
func captureFormData(form page.FormSubmit) map[string]any {
	data := make(map[string]any)
	for _, field := range form.Fields {
		if field.Name == "" {
			continue
		}
		if strings.EqualFold(field.Type, "password") {
			continue
		}
		if isSensitiveField(field.Name) {
			continue
		}

		switch strings.ToLower(field.Type) {
		case "checkbox", "radio":
			if !field.Checked {
				continue
			}
			data[field.Name] = field.Value
		default:
			data[field.Name] = truncate(field.Value, maxCapturedValueLength)
		}
	}
	return data
}
