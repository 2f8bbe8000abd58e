package domain

import "github.com/shopspring/decimal"

// ResolveBaseAmount converts a gateway-settled amount into the order's base
// currency. Methods with multi-currency processing settle in the order
// currency, so the order's own exchange ratio converts the amount back; an
// amount already in base currency passes through. Unknown settlement
// currencies pass through unconverted, the caller logs them.
func (o *Order) ResolveBaseAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	switch currency {
	case o.BaseCurrency, "":
		return amount
	case o.OrderCurrency:
		if o.GrandTotal.IsZero() {
			return amount
		}
		return RoundAmount(amount.Mul(o.BaseGrandTotal).Div(o.GrandTotal), o.BaseCurrency)
	}
	return amount
}

// SettlementAmount picks the amount and currency to charge for the order:
// the order currency pair when multi-currency processing is on, the store
// base pair otherwise.
func (o *Order) SettlementAmount(multiCurrency bool) (decimal.Decimal, string) {
	if multiCurrency {
		return o.GrandTotal, o.OrderCurrency
	}
	return o.BaseGrandTotal, o.BaseCurrency
}
