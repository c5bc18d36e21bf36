package zarinpal

// Tabel kode error Zarinpal -> pesan utk user (bahasa Persia, sesuai
// storefront).
var errorMessages = map[int]string{
	-9:  "خطا در اعتبارسنجی اطلاعات",
	-10: "آی‌پی یا مرچنت کد پذیرنده صحیح نیست",
	-11: "مرچنت کد فعال نیست",
	-12: "تلاش بیش از حد در یک بازه زمانی کوتاه",
	-15: "ترمینال شما به حالت تعلیق در آمده است",
	-16: "سطح تایید پذیرنده پایین تر از سطح نقره ای است",
	-30: "اجازه دسترسی به تسویه اشتراکی شناور ندارید",
	-31: "حساب بانکی تسویه را به پنل اضافه کنید",
	-32: "مبلغ وارد شده از مبلغ کل تراکنش بیشتر است",
	-33: "درصدهای وارد شده صحیح نیست",
	-34: "مبلغ وارد شده از مبلغ کل تراکنش بیشتر است",
	-35: "تعداد افراد دریافت کننده تسهیم بیش از حد مجاز است",
	-40: "پارامترهای اضافی نامعتبر، expire را چک کنید",
	-50: "مبلغ پرداخت شده با مقدار مبلغ در وریفای متفاوت است",
	-51: "پرداخت ناموفق",
	-52: "خطای غیر منتظره با پشتیبانی تماس بگیرید",
	-53: "اتوریتی برای این مرچنت کد نیست",
	-54: "اتوریتی نامعتبر است",
}

func errorMessage(code int) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "خطای ناشناخته"
}
