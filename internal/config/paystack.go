package config

type Paystack struct {
	BaseURL string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	// SecretKey подписывает запросы и проверяет подписи вебхуков.
	SecretKey string `env:"PAYSTACK_SECRET_KEY,required" json:"-"`
}
