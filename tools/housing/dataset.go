package housing

import (
	_ "embed"

	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
	"github.com/tmoody1973/tribe-ai/encoding"
	jsonenc "github.com/tmoody1973/tribe-ai/encoding/json"
	"github.com/tmoody1973/tribe-ai/pkg/metricskey"
)

//go:embed data/migrant_housing_resources.json
var bundled []byte

// BundledName identifies the embedded dataset in logs.
const BundledName = "bundled"

// Metadata describes the dataset origin.
type Metadata struct {
	Source      string `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	LastUpdated string `json:"last_updated,omitempty" yaml:"last_updated,omitempty" toml:"last_updated,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Resource is a housing program or platform.
type Resource struct {
	OrganizationName string   `json:"organization_name,omitempty" yaml:"organization_name,omitempty" toml:"organization_name,omitempty"`
	URL              string   `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	ResourceType     string   `json:"resource_type,omitempty" yaml:"resource_type,omitempty" toml:"resource_type,omitempty"`
	Services         []string `json:"services,omitempty" yaml:"services,omitempty" toml:"services,omitempty"`
}

// CountryEntry groups the resources of one country.
type CountryEntry struct {
	Country     string      `json:"country" yaml:"country" toml:"country" validate:"required"`
	CountryCode string      `json:"country_code,omitempty" yaml:"country_code,omitempty" toml:"country_code,omitempty"`
	Continent   string      `json:"continent" yaml:"continent" toml:"continent" validate:"required"`
	Resources   []*Resource `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources,omitempty"`
}

// Dataset is the housing document. It is read-only once loaded.
type Dataset struct {
	Metadata  Metadata        `json:"metadata" yaml:"metadata" toml:"metadata"`
	Resources []*CountryEntry `json:"housing_resources" yaml:"housing_resources" toml:"housing_resources"`
}

// Load reads a dataset from path, or the bundled dataset when path is empty.
// Invalid entries are dropped.
func Load(path string) (*Dataset, error) {
	ds := new(Dataset)
	var err error
	if path == "" {
		err = encoding.Decode(jsonenc.NewEncoder(), bundled, ds)
	} else {
		err = encoding.DecodeFile(path, ds)
	}
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	valid := ds.Resources[:0]
	for i, e := range ds.Resources {
		if e == nil {
			continue
		}
		if verr := validate.Struct(e); verr != nil {
			logger.KV(xlog.WARNING,
				"reason", "invalid_entry",
				"index", i,
				"country", e.Country,
				"err", verr.Error())
			continue
		}
		valid = append(valid, e)
	}
	ds.Resources = valid
	return ds, nil
}

// LoadOrEmpty is Load that degrades to an empty dataset on failure.
// The failure is logged and counted, the tool stays usable.
func LoadOrEmpty(path string) *Dataset {
	ds, err := Load(path)
	if err != nil {
		name := path
		if name == "" {
			name = BundledName
		}
		logger.KV(xlog.ERROR,
			"reason", "load_dataset",
			"path", name,
			"err", err.Error())
		metricskey.StatsDatasetLoadFailed.IncrCounter(1, "housing")
		return &Dataset{}
	}

	logger.KV(xlog.INFO,
		"status", "dataset_loaded",
		"countries", len(ds.Resources))
	return ds
}
