package bencode

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeValue bencodes v, which must be an int, a string, a []any, or a
// map[string]any (dictionary keys are emitted in sorted order, per spec).
func EncodeValue(v any) (string, error) {
	var b strings.Builder
	if err := encodeValue(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func encodeValue(b *strings.Builder, v any) error {
	switch value := v.(type) {
	case int:
		b.WriteByte(integerStartDelim)
		b.WriteString(strconv.Itoa(value))
		b.WriteByte(endDelim)
		return nil

	case string:
		b.WriteString(strconv.Itoa(len(value)))
		b.WriteByte(':')
		b.WriteString(value)
		return nil

	case []any:
		b.WriteByte(listStartDelim)
		for _, entry := range value {
			if err := encodeValue(b, entry); err != nil {
				return err
			}
		}
		b.WriteByte(endDelim)
		return nil

	case map[string]any:
		b.WriteByte(dictStartDelim)
		for _, key := range sortedKeys(value) {
			if err := encodeValue(b, key); err != nil {
				return err
			}
			if err := encodeValue(b, value[key]); err != nil {
				return err
			}
		}
		b.WriteByte(endDelim)
		return nil

	default:
		return fmt.Errorf("bencode: cannot encode value of type %T", v)
	}
}
