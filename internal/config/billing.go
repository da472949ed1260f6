package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the billing policy knobs: numbering templates,
// the default tax rate, rounding precision and download-token policy.
type BillingConfig struct {
	InvoiceNumberTemplate string  `mapstructure:"invoiceNumberTemplate"`
	ReceiptNumberTemplate string  `mapstructure:"receiptNumberTemplate"`
	DefaultTaxRate        float64 `mapstructure:"defaultTaxRate"`
	RoundingPrecision     int32   `mapstructure:"roundingPrecision"`
	Currency              string  `mapstructure:"currency"`
	CurrencySymbol        string  `mapstructure:"currencySymbol"`

	TokenTTLHours     int `mapstructure:"tokenTTLHours"`
	TokenMaxDownloads int `mapstructure:"tokenMaxDownloads"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		InvoiceNumberTemplate: "INV-{SEQ5}",
		ReceiptNumberTemplate: "{YYYY}{MM}{SEQ4}",
		DefaultTaxRate:        18.0,
		RoundingPrecision:     2,
		Currency:              "INR",
		CurrencySymbol:        "₹",
		TokenTTLHours:         24,
		TokenMaxDownloads:     5,
	}
}

func (c BillingConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// BillingConfigHolder holds the current billing policy and supports
// hot reload from a mounted config file.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/billing")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
	v.SetDefault("billing.receiptNumberTemplate", defaults.ReceiptNumberTemplate)
	v.SetDefault("billing.defaultTaxRate", defaults.DefaultTaxRate)
	v.SetDefault("billing.roundingPrecision", defaults.RoundingPrecision)
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.currencySymbol", defaults.CurrencySymbol)
	v.SetDefault("billing.tokenTTLHours", defaults.TokenTTLHours)
	v.SetDefault("billing.tokenMaxDownloads", defaults.TokenMaxDownloads)

	haveFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		haveFile = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if haveFile {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			if err := validateBillingConfig(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.InvoiceNumberTemplate) == "" {
		return errors.New("billing.invoiceNumberTemplate cannot be empty")
	}
	if strings.TrimSpace(cfg.ReceiptNumberTemplate) == "" {
		return errors.New("billing.receiptNumberTemplate cannot be empty")
	}
	if cfg.DefaultTaxRate < 0 {
		return errors.New("billing.defaultTaxRate cannot be negative")
	}
	if cfg.RoundingPrecision < 0 {
		return errors.New("billing.roundingPrecision cannot be negative")
	}
	if cfg.TokenTTLHours <= 0 {
		return errors.New("billing.tokenTTLHours must be positive")
	}
	if cfg.TokenMaxDownloads <= 0 {
		return errors.New("billing.tokenMaxDownloads must be positive")
	}
	return nil
}
