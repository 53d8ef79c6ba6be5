package payment

import "strings"

// CardBrand represents the card brand.
type CardBrand string

const (
	BrandVisa       CardBrand = "VISA"
	BrandMastercard CardBrand = "MASTERCARD"
	BrandAmex       CardBrand = "AMEX"
	BrandUnknown    CardBrand = "UNKNOWN"
)

// SavedCard is the card metadata kept in the vault. It never holds the full PAN or CVV.
type SavedCard struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"-"`
	MaskedNumber   string    `json:"masked_number"`
	Brand          CardBrand `json:"brand"`
	Holder         string    `json:"holder"`
	ExpiryMonth    string    `json:"expiry_month"`
	ExpiryYear     string    `json:"expiry_year"`
	Billing        Billing   `json:"billing"`
}

// Saved converts an entered card into vault metadata.
func (c NewCard) Saved(id, registrationID string) SavedCard {
	return SavedCard{
		ID:             id,
		RegistrationID: registrationID,
		MaskedNumber:   MaskPAN(c.Number),
		Brand:          DetectBrand(c.Number),
		Holder:         c.Holder,
		ExpiryMonth:    c.ExpiryMonth,
		ExpiryYear:     c.ExpiryYear,
		Billing:        c.Billing,
	}
}

func digits(pan string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, pan)
}

// DetectBrand infers the brand from the PAN prefix.
func DetectBrand(pan string) CardBrand {
	d := digits(pan)
	if len(d) < 4 {
		return BrandUnknown
	}
	prefix2 := atoi(d[:2])
	prefix4 := atoi(d[:4])
	switch {
	case d[0] == '4':
		return BrandVisa
	case prefix2 >= 51 && prefix2 <= 55, prefix4 >= 2221 && prefix4 <= 2720:
		return BrandMastercard
	case prefix2 == 34 || prefix2 == 37:
		return BrandAmex
	}
	return BrandUnknown
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// MaskPAN keeps the first six and last four digits.
func MaskPAN(pan string) string {
	d := digits(pan)
	if len(d) <= 10 {
		return strings.Repeat("*", len(d))
	}
	return d[:6] + strings.Repeat("*", len(d)-10) + d[len(d)-4:]
}
