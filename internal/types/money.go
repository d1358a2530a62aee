// README: Common money value object used across modules.
package types

// CurrencyXOF is the West African CFA franc. It has no minor unit, so
// Amount is always whole francs.
const CurrencyXOF = "XOF"

type Money struct {
	Amount   int64
	Currency string
}

func XOF(amount int64) Money {
	return Money{Amount: amount, Currency: CurrencyXOF}
}

func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}
