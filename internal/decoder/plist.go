package decoder

import (
	"context"
	"fmt"

	"howett.net/plist"
)

// PlistDecoder decodes property lists in the formats understood by
// howett.net/plist (binary bplist00, XML, OpenStep, GNUstep).
type PlistDecoder struct{}

// Decode unmarshals raw into a generic value tree.
func (PlistDecoder) Decode(_ context.Context, tag string, raw []byte) (any, error) {
	var value any
	if _, err := plist.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("%w: %s plist: %w", ErrDecode, tag, err)
	}
	return value, nil
}
