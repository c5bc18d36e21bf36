package notify

import "fmt"

// Teks notifikasi utk user (Persia, sama dgn storefront lama).

func PaymentConfirmed(orderID, refID string, amountToman int64) string {
	return fmt.Sprintf("✅ پرداخت شما با موفقیت انجام شد\nشماره سفارش: %s\nکد پیگیری: %s\nمبلغ: %s تومان",
		orderID, refID, FormatToman(amountToman))
}

func PaymentFailed(orderID, reason string) string {
	if reason == "" {
		return fmt.Sprintf("❌ پرداخت سفارش #%s انجام نشد.", orderID)
	}
	return fmt.Sprintf("❌ پرداخت سفارش #%s ناموفق بود.\n%s", orderID, reason)
}

func OrderCancelled(orderID string) string {
	return fmt.Sprintf("سفارش #%s لغو شد و موجودی کالاها بازگردانده شد.", orderID)
}

// FormatToman: pemisah ribuan sederhana (render digit Persia diurus layer
// presentasi).
func FormatToman(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
