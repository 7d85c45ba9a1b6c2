package dialect

import (
	"fmt"
	"strconv"

	"github.com/oriumgames/schem/nbt"
	gtnbt "github.com/sandertv/gophertunnel/minecraft/nbt"
)

// decodeLittleEndian reads a Bedrock Edition tag tree with a compound root. The
// decoder enforces its own fixed nesting limit; the one in opts is applied to the
// converted tree.
func decodeLittleEndian(data []byte, opts ...nbt.Option) (*nbt.Compound, error) {
	var m map[string]any
	if err := gtnbt.UnmarshalEncoding(data, &m, gtnbt.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: %w", nbt.ErrMalformedTag, err)
	}
	c, err := nbt.CompoundFromMap(m)
	if err != nil {
		return nil, err
	}
	if err := nbt.CheckDepth(c, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// encodeLittleEndian writes c as a Bedrock Edition tag tree. Key order is not kept.
func encodeLittleEndian(c *nbt.Compound) ([]byte, error) {
	data, err := gtnbt.MarshalEncoding(c.Map(), gtnbt.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("nbt: encode little endian: %w", err)
	}
	return data, nil
}

// BedrockProperties converts Java block state properties to Bedrock block state
// values: booleans become bytes, integers become ints and anything else stays a
// string.
func BedrockProperties(props map[string]string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch v {
		case "true":
			out[k] = uint8(1)
		case "false":
			out[k] = uint8(0)
		default:
			if i, err := strconv.ParseInt(v, 10, 32); err == nil {
				out[k] = int32(i)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

// JavaProperties is the inverse of BedrockProperties. Bytes other than 0 and 1 are
// kept as numbers.
func JavaProperties(states map[string]any) map[string]string {
	if len(states) == 0 {
		return nil
	}
	out := make(map[string]string, len(states))
	for k, v := range states {
		switch v := v.(type) {
		case uint8:
			switch v {
			case 0:
				out[k] = "false"
			case 1:
				out[k] = "true"
			default:
				out[k] = strconv.Itoa(int(v))
			}
		case int32:
			out[k] = strconv.Itoa(int(v))
		case string:
			out[k] = v
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
