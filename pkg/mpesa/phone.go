package mpesa

import "strings"

// NormalizePhone converts Kenyan phone inputs into the 254XXXXXXXXX wire
// format. Accepted inputs: 07XX/01XX local format, 7XX/1XX bare format,
// +254/254 international format, with spaces and dashes tolerated.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "+", "", "-", "").Replace(raw)

	switch {
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
	case strings.HasPrefix(phone, "7"), strings.HasPrefix(phone, "1"):
		phone = "254" + phone
	}

	if !isValidNormalized(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// ValidatePhone reports whether the input normalizes to a dialable Kenyan
// mobile number.
func ValidatePhone(raw string) bool {
	_, err := NormalizePhone(raw)
	return err == nil
}

func isValidNormalized(phone string) bool {
	if len(phone) != 12 {
		return false
	}
	if !strings.HasPrefix(phone, "2547") && !strings.HasPrefix(phone, "2541") {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
