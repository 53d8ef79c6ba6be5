package payment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ridepay/internal/common/money"
)

func validRequest() Request {
	return Request{
		BookingID: "bk-100",
		Amount:    money.New(3500, money.SAR),
		NewCard: &NewCard{
			Number:      "4111 1111 1111 1111",
			Holder:      "Sara Ali",
			ExpiryMonth: "09",
			ExpiryYear:  "2030",
			CVV:         "123",
			Billing:     Billing{Street: "King Fahd Rd", City: "Riyadh", Country: "SA"},
		},
		CustomerEmail: "sara@example.com",
	}
}

func TestRequestValidate(t *testing.T) {
	t.Run("valid new card", func(t *testing.T) {
		r := validRequest()
		r.NewCard.Number = "4111111111111111"
		require.Empty(t, r.Validate())
	})

	t.Run("no card source", func(t *testing.T) {
		r := validRequest()
		r.NewCard = nil
		require.Equal(t, []string{"new_card: Either a new card or a saved card is required"}, r.Validate())
	})

	t.Run("both card sources", func(t *testing.T) {
		r := validRequest()
		r.NewCard.Number = "4111111111111111"
		r.VaultedCard = &VaultedCard{CardID: "card-1", CVV: "123"}
		require.Equal(t, []string{"vaulted_card: Must not be combined with new_card"}, r.Validate())
	})

	t.Run("field problems are reported per field", func(t *testing.T) {
		r := validRequest()
		r.NewCard.Number = "4111111111111112"
		r.NewCard.CVV = "12"
		r.CustomerEmail = "not-an-email"
		msgs := r.Validate()
		require.Contains(t, msgs, "new_card.number: Must be a valid card number")
		require.Contains(t, msgs, "new_card.cvv: Must be at least 3")
		require.Contains(t, msgs, "customer_email: Must be a valid email address")
	})

	t.Run("vaulted card", func(t *testing.T) {
		r := validRequest()
		r.NewCard = nil
		r.VaultedCard = &VaultedCard{CardID: "card-1", CVV: "1234"}
		require.Empty(t, r.Validate())
	})
}

func TestRequestCloneIsDeep(t *testing.T) {
	r := validRequest()
	c := r.Clone()
	r.NewCard.CVV = "999"
	require.Equal(t, "123", c.NewCard.CVV)
}

func TestOutcomeMessage(t *testing.T) {
	require.Equal(t, "a\nb", ValidationFailed("a", "b").Message())
	require.Equal(t, "Insufficient funds", Declined("800.100.153", "Insufficient funds").Message())
	require.Equal(t, "Your card was declined (100.100.101)", Declined("100.100.101", "").Message())
	require.Contains(t, TransportFailed(TransportTimeout).Message(), "too long")
	require.Contains(t, TransportFailed(TransportNetwork).Message(), "connection")
}

func TestStateIsTerminal(t *testing.T) {
	for _, s := range []State{StateApproved, StateDeclined, StateTimedOut, StateCancelled} {
		require.True(t, s.IsTerminal(), s)
	}
	for _, s := range []State{StateIdle, StateSubmitting, StateAwaitingStepUp, StatePolling} {
		require.False(t, s.IsTerminal(), s)
	}
}

func TestCardMetadata(t *testing.T) {
	require.Equal(t, BrandVisa, DetectBrand("4111 1111 1111 1111"))
	require.Equal(t, BrandMastercard, DetectBrand("5500000000000004"))
	require.Equal(t, BrandMastercard, DetectBrand("2221000000000009"))
	require.Equal(t, BrandAmex, DetectBrand("378282246310005"))
	require.Equal(t, BrandUnknown, DetectBrand("6011"))

	require.Equal(t, "411111******1111", MaskPAN("4111 1111 1111 1111"))

	saved := validRequest().NewCard.Saved("card-1", "reg-1")
	require.Equal(t, "411111******1111", saved.MaskedNumber)
	require.Equal(t, BrandVisa, saved.Brand)
	require.Equal(t, "reg-1", saved.RegistrationID)
	require.Equal(t, "Riyadh", saved.Billing.City)
}
