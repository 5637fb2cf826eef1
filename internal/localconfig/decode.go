/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package localconfig

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// leafKeys resolves every key of the configuration struct oType against the
// parsed file, letting viper apply environment overrides. Struct fields
// absent from the file are still looked up so they can be set from the
// environment alone.
func leafKeys(base string, v *viper.Viper, nodeKeys map[string]interface{}, oType reflect.Type) map[string]interface{} {
	subTypes := map[string]reflect.Type{}

	if oType != nil && oType.Kind() == reflect.Struct {
	outer:
		for i := 0; i < oType.NumField(); i++ {
			fieldName := oType.Field(i).Name
			fieldType := oType.Field(i).Type

			for key := range nodeKeys {
				if strings.EqualFold(fieldName, key) {
					subTypes[key] = fieldType
					continue outer
				}
			}

			subTypes[fieldName] = fieldType
			nodeKeys[fieldName] = nil
		}
	}

	result := map[string]interface{}{}
	for key, val := range nodeKeys {
		fqKey := base + key

		if sub, ok := val.(map[string]interface{}); ok {
			result[key] = leafKeys(fqKey+".", v, sub, subTypes[key])
			continue
		}
		if val == nil && subTypes[key] != nil && subTypes[key].Kind() == reflect.Struct {
			result[key] = leafKeys(fqKey+".", v, map[string]interface{}{}, subTypes[key])
			continue
		}

		if override := v.Get(fqKey); override != nil {
			val = override
		}
		if val != nil {
			result[key] = val
		}
	}
	return result
}

// sliceDecodeHook parses strings of the format "[thing1, thing2]" into
// string slices. Whitespace around elements is removed.
func sliceDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
		return data, nil
	}

	raw := strings.TrimSpace(data.(string))
	if l := len(raw); l > 1 && raw[0] == '[' && raw[l-1] == ']' {
		raw = raw[1 : l-1]
	}
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	slice := strings.Split(raw, ",")
	for i, v := range slice {
		slice[i] = strings.TrimSpace(v)
	}
	return slice, nil
}

var byteSizeRegexp = regexp.MustCompile(`^(?P<size>[0-9]+)\s*(?i)(?P<unit>(k|m|g))b?$`)

// byteSizeDecodeHook parses sizes such as "8K" or "32 MB" into uint32.
func byteSizeDecodeHook(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.String || t != reflect.Uint32 {
		return data, nil
	}
	raw := data.(string)
	if !byteSizeRegexp.MatchString(raw) {
		return data, nil
	}

	size, err := strconv.ParseUint(byteSizeRegexp.ReplaceAllString(raw, "${size}"), 0, 64)
	if err != nil {
		return data, nil
	}
	switch strings.ToLower(byteSizeRegexp.ReplaceAllString(raw, "${unit}")) {
	case "g":
		size = size << 10
		fallthrough
	case "m":
		size = size << 10
		fallthrough
	case "k":
		size = size << 10
	}
	if size > math.MaxUint32 {
		return size, errors.Errorf("value '%s' overflows uint32", raw)
	}
	return size, nil
}

// enhancedExactUnmarshal decodes the configuration into output, failing on
// keys that do not belong to it.
func enhancedExactUnmarshal(v *viper.Viper, output interface{}) error {
	oType := reflect.TypeOf(output)
	if oType.Kind() != reflect.Ptr || oType.Elem().Kind() != reflect.Struct {
		return errors.New("supplied output argument must be a pointer to a struct")
	}

	leaves := leafKeys("", v, v.AllSettings(), oType.Elem())
	logger.Debugf("%+v", leaves)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			sliceDecodeHook,
			byteSizeDecodeHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(leaves)
}
