package nbt

import (
	"strconv"
	"strings"
)

// Stringify renders t in the stringified NBT syntax used by Minecraft commands. It is
// meant for diagnostics; there is no parser for the output.
func Stringify(t Tag) string {
	var sb strings.Builder
	writeSNBT(&sb, t)
	return sb.String()
}

func writeSNBT(sb *strings.Builder, t Tag) {
	switch v := t.(type) {
	case Byte:
		sb.WriteString(strconv.Itoa(int(v)) + "b")
	case Short:
		sb.WriteString(strconv.Itoa(int(v)) + "s")
	case Int:
		sb.WriteString(strconv.Itoa(int(v)))
	case Long:
		sb.WriteString(strconv.FormatInt(int64(v), 10) + "L")
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32) + "f")
	case Double:
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64) + "d")
	case String:
		sb.WriteString(strconv.Quote(string(v)))
	case ByteArray:
		sb.WriteString("[B;")
		for i, b := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(int8(b))) + "b")
		}
		sb.WriteByte(']')
	case IntArray:
		sb.WriteString("[I;")
		for i, x := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(int(x)))
		}
		sb.WriteByte(']')
	case LongArray:
		sb.WriteString("[L;")
		for i, x := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatInt(x, 10) + "L")
		}
		sb.WriteByte(']')
	case *List:
		sb.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeSNBT(sb, it)
		}
		sb.WriteByte(']')
	case *Compound:
		sb.WriteByte('{')
		i := 0
		for k, it := range v.All() {
			if i > 0 {
				sb.WriteByte(',')
			}
			i++
			if bareKey(k) {
				sb.WriteString(k)
			} else {
				sb.WriteString(strconv.Quote(k))
			}
			sb.WriteByte(':')
			writeSNBT(sb, it)
		}
		sb.WriteByte('}')
	}
}

func bareKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == '+':
		default:
			return false
		}
	}
	return true
}
