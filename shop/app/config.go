package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	coredatabase "github.com/m3rciful/coursebot/core/database"
	"github.com/m3rciful/coursebot/shop/payment"
	"github.com/m3rciful/coursebot/shop/webhook"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const defaultExchange = "coursebot.events"

// StorageConfig picks where courses, users and orders live.
type StorageConfig struct {
	// Driver is "postgres" (default) or "memory". Memory loses everything on restart.
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// CartConfig picks the cart backend.
type CartConfig struct {
	// Backend is "memory" or "postgres"; it defaults to the storage driver.
	Backend string `yaml:"backend" envconfig:"CART_BACKEND"`
}

// EventsConfig enables the lifecycle event feed.
type EventsConfig struct {
	// AMQPURL turns publishing on; empty disables it.
	AMQPURL  string `yaml:"amqp_url" envconfig:"AMQP_URL"`
	Exchange string `yaml:"exchange" envconfig:"AMQP_EXCHANGE"`
}

// CatalogConfig points at the initial course list.
type CatalogConfig struct {
	// SeedFile is loaded into an empty catalog at startup.
	SeedFile string `yaml:"seed_file" envconfig:"CATALOG_SEED_FILE"`
}

// Config is the coursebot configuration: the core sections plus the shop ones.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage  StorageConfig        `yaml:"storage"`
	Database coredatabase.Config  `yaml:"database"`
	Payment  payment.Config       `yaml:"payment"`
	Server   webhook.ServerConfig `yaml:"server"`
	Cart     CartConfig           `yaml:"cart"`
	Events   EventsConfig         `yaml:"events"`
	Catalog  CatalogConfig        `yaml:"catalog"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads the YAML file at path, overlays the environment and normalizes.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverPostgres
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres {
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	}

	c.Cart.Backend = strings.ToLower(strings.TrimSpace(c.Cart.Backend))
	switch c.Cart.Backend {
	case "":
		c.Cart.Backend = c.Storage.Driver
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.Driver != DriverPostgres {
			return fmt.Errorf("cart.backend postgres requires storage.driver postgres")
		}
	default:
		return fmt.Errorf("invalid cart.backend %q; allowed: memory, postgres", c.Cart.Backend)
	}

	if err := c.Server.Normalize(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Payment.ReturnURL) == "" {
		c.Payment.ReturnURL = c.Server.PublicURL
	}
	if err := c.Payment.Normalize(); err != nil {
		return err
	}

	c.Events.AMQPURL = strings.TrimSpace(c.Events.AMQPURL)
	if c.Events.Exchange = strings.TrimSpace(c.Events.Exchange); c.Events.Exchange == "" {
		c.Events.Exchange = defaultExchange
	}
	c.Catalog.SeedFile = strings.TrimSpace(c.Catalog.SeedFile)
	return nil
}
