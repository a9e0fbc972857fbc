package profiler

import (
	"fmt"
	"os"
	"reflect"

	"github.com/absmach/profiler/profiler"
	"github.com/pelletier/go-toml"
)

// Config is a device profile: the MQTT identity of the device plus optional
// pipeline overrides under [pipeline].
type Config struct {
	Client ClientConfig `toml:"client"`
}

type ClientConfig struct {
	ClientID  string `toml:"client_id"`
	ClientKey string `toml:"client_key"`
	DomainID  string `toml:"domain_id"`
	ChannelID string `toml:"channel_id"`
}

// LoadConfig reads the profile at path. Keys present in its [pipeline] table
// replace the corresponding fields of pipeline; absent keys leave them as
// they are.
func LoadConfig(path string, pipeline *profiler.Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	sub, ok := tree.Get("pipeline").(*toml.Tree)
	if !ok || pipeline == nil {
		return &cfg, nil
	}

	var overlay profiler.Config
	if err := sub.Unmarshal(&overlay); err != nil {
		return nil, fmt.Errorf("error unmarshaling pipeline config: %w", err)
	}
	overlayPresent(sub, pipeline, &overlay)

	return &cfg, nil
}

func overlayPresent(tree *toml.Tree, dst, src *profiler.Config) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	t := dv.Type()

	for i := range t.NumField() {
		key := t.Field(i).Tag.Get("toml")
		if key == "" || key == "-" || !tree.Has(key) {
			continue
		}
		dv.Field(i).Set(sv.Field(i))
	}
}
