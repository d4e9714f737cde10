package provider

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// CommonOptions are the provider.options keys understood by every
// network-backed provider.
type CommonOptions struct {
	Headers      map[string]string `mapstructure:"headers"`
	Organization string            `mapstructure:"organization"`
	Project      string            `mapstructure:"project"`
}

// DecodeOptions decodes a free-form options map into out.
// Unknown keys are rejected so typos in ledgerlens.yaml surface early.
func DecodeOptions(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(strings.ReplaceAll(mapKey, "-", "_"), fieldName)
		},
	})
	if err != nil {
		return fmt.Errorf("building options decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decoding provider options: %w", err)
	}
	return nil
}
