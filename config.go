package gemini

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const configKeyPrefix = "CacheMessageManager."

// CacheBusConfig is the configuration surface described in spec §6. It is
// reloadable at runtime via Manager.Configure; in-flight sends use
// whichever value was current when they read it.
type CacheBusConfig struct {
	// MaximumRelationSize bounds the cardinality of a bulk relation event
	// payload before it is degraded to RESET.
	MaximumRelationSize int `validate:"gte=0"`

	// DeliveryMode selects the transport durability used for published
	// envelopes.
	DeliveryMode DeliveryMode

	// NATSAddress and NATSCluster configure the concrete NATS Streaming
	// transport (supplemental to the original spec, which assumed JMS
	// connection factories supplied externally; see SPEC_FULL.md §6).
	NATSAddress string `validate:"required"`
	NATSCluster string `validate:"required"`

	// HTTPStatusAddr is loaded with the rest of the configuration but is
	// not read by the Manager: a StatusServer listens on the address
	// passed to NewStatusServer and runs only when attached with
	// WithStatusServer.
	HTTPStatusAddr string
}

// DefaultCacheBusConfig returns the configuration a Manager holds before
// its first Configure call. LoadCacheBusConfig uses its
// MaximumRelationSize, DeliveryMode and HTTPStatusAddr as defaults for
// unset keys, but not its NATSAddress and NATSCluster.
func DefaultCacheBusConfig() CacheBusConfig {
	return CacheBusConfig{
		MaximumRelationSize: 10000,
		DeliveryMode:        DeliveryPersistent,
		NATSAddress:         "nats://localhost:4222",
		NATSCluster:         "cache-cluster",
	}
}

func (c CacheBusConfig) currentMaximumRelationSize() int { return c.MaximumRelationSize }

var validate = validator.New()

// LoadCacheBusConfig reads the CacheMessageManager.* keys from v,
// starting from DefaultCacheBusConfig for MaximumRelationSize,
// DeliveryMode and HTTPStatusAddr when unset, and validates the result.
// NATSAddress and NATSCluster get no default here: leaving either unset
// fails validation.
func LoadCacheBusConfig(v *viper.Viper) (CacheBusConfig, error) {
	cfg := DefaultCacheBusConfig()

	v.SetDefault(configKeyPrefix+"MaximumRelationSize", cfg.MaximumRelationSize)
	v.SetDefault(configKeyPrefix+"DeliveryMode", cfg.DeliveryMode.String())
	v.SetDefault(configKeyPrefix+"HTTPStatusAddr", cfg.HTTPStatusAddr)

	cfg.MaximumRelationSize = v.GetInt(configKeyPrefix + "MaximumRelationSize")
	cfg.NATSAddress = v.GetString(configKeyPrefix + "NATSAddress")
	cfg.NATSCluster = v.GetString(configKeyPrefix + "NATSCluster")
	cfg.HTTPStatusAddr = v.GetString(configKeyPrefix + "HTTPStatusAddr")

	mode, err := ParseDeliveryMode(v.GetString(configKeyPrefix + "DeliveryMode"))
	if err != nil {
		return CacheBusConfig{}, fmt.Errorf("gemini: configure: %w", err)
	}
	cfg.DeliveryMode = mode

	if err := validate.Struct(cfg); err != nil {
		return CacheBusConfig{}, fmt.Errorf("gemini: invalid configuration: %w", err)
	}

	return cfg, nil
}
