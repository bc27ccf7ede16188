package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/schema"
)

// PropertyConfig is the JSON-friendly mirror of schema.Property.
type PropertyConfig struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsIndex      bool   `json:"is_index"`
	IsAnalyzed   bool   `json:"is_analyzed"`
	IsFilter     bool   `json:"is_filter"`
	IsMultiValue bool   `json:"is_multi_value"`
}

func (p PropertyConfig) propertyType() (schema.PropertyType, error) {
	switch p.Type {
	case "string":
		return schema.StringType, nil
	case "int":
		return schema.IntType, nil
	case "float":
		return schema.FloatType, nil
	case "nominal":
		return schema.NominalType, nil
	case "date":
		return schema.DateType, nil
	default:
		return 0, errors.Errorf("unknown property type %q for property %q", p.Type, p.Name)
	}
}

// Config is the on-disk JSON configuration this wiring entrypoint
// reads. It covers only what the core operations in this repository
// need to construct; a real deployment's bundle-configuration loader
// (out of scope per spec.md §1) would carry a great deal more.
type Config struct {
	CollectionName string `json:"collection_name"`

	BundleDir       string           `json:"bundle_dir"`
	CurrentDataDir  string           `json:"current_data_dir"`
	NextDataDir     string           `json:"next_data_dir"`
	DocIDProperty   string           `json:"docid_property"`
	DateProperty    string           `json:"date_property"`
	SourceField     string           `json:"source_field"`
	BackupThreshold int64            `json:"backup_threshold_bytes"`
	Properties      []PropertyConfig `json:"properties"`

	UserSCDDir        string `json:"user_scd_dir"`
	OrderSCDDir       string `json:"order_scd_dir"`
	RecommendCronExpr string `json:"recommend_cron_expr"`
	FreqItemSetEnable bool   `json:"freq_item_set_enable"`

	LogServerEndpoint string `json:"log_server_endpoint"`
}

// LoadConfig reads and validates a Config from a JSON file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config file")
	}
	if cfg.CollectionName == "" {
		return Config{}, errors.New("config: collection_name is required")
	}
	return cfg, nil
}

// BuildSchema constructs a schema.Schema from the config's property
// list.
func (c Config) BuildSchema() (*schema.Schema, error) {
	props := make([]schema.Property, 0, len(c.Properties))
	for i, p := range c.Properties {
		typ, err := p.propertyType()
		if err != nil {
			return nil, err
		}
		props = append(props, schema.Property{
			ID:   schema.PropertyID(i + 1),
			Name: p.Name,
			Type: typ,
			Flags: schema.Flags{
				IsIndex:      p.IsIndex,
				IsAnalyzed:   p.IsAnalyzed,
				IsFilter:     p.IsFilter,
				IsMultiValue: p.IsMultiValue,
			},
		})
	}

	docIDName := c.DocIDProperty
	if docIDName == "" {
		docIDName = "DOCID"
	}
	dateName := c.DateProperty
	if dateName == "" {
		dateName = "DATE"
	}
	return schema.New(props, docIDName, dateName), nil
}
