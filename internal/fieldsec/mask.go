package fieldsec

import "strings"

// Mask applies the named transform to a raw field value. It is the
// rendering collaborator for the masking kinds the engine selects; the
// engine never calls it on fields the subject can see in full.
func Mask(kind MaskingKind, value string) string {
	if value == "" {
		return ""
	}
	switch kind {
	case MaskNone:
		return value
	case MaskFull:
		return strings.Repeat("*", len([]rune(value)))
	case MaskLast4:
		return maskLast4(value)
	case MaskPartial:
		return maskPartial(value)
	case MaskEmail:
		return maskEmail(value)
	case MaskPhone:
		return maskLast4(stripNonDigits(value))
	case MaskDate:
		// Keep the year, hide month and day.
		if idx := strings.IndexByte(value, '-'); idx > 0 {
			return value[:idx] + "-**-**"
		}
		return "****"
	case MaskCurrency:
		return "***"
	default:
		return strings.Repeat("*", len([]rune(value)))
	}
}

func maskLast4(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func maskPartial(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

func maskEmail(value string) string {
	at := strings.IndexByte(value, '@')
	if at <= 0 {
		return maskPartial(value)
	}
	local := value[:at]
	if len(local) <= 1 {
		return "*" + value[at:]
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + value[at:]
}

func stripNonDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
