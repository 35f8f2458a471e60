package types

import (
	"fmt"
	"strconv"
	"strings"
)

const ErrInvalidByteSize = SentinelError("invalid byte size")

// ByteSize is a count of bytes that prints and parses in binary units.
type ByteSize int64

const (
	Byte ByteSize = 1
	KiB           = 1024 * Byte
	MiB           = 1024 * KiB
	GiB           = 1024 * MiB
)

var byteSizeUnits = []struct {
	suffix string
	size   ByteSize
}{
	{"GB", GiB},
	{"MB", MiB},
	{"KB", KiB},
	{"GIB", GiB},
	{"MIB", MiB},
	{"KIB", KiB},
	{"G", GiB},
	{"M", MiB},
	{"K", KiB},
	{"B", Byte},
}

// String formats the size with two decimal places in the largest unit that
// keeps the value at or above one, e.g. "25 MB" or "1.5 KB".
func (b ByteSize) String() string {
	if b < KiB {
		return fmt.Sprintf("%d Bytes", int64(b))
	}
	units := []string{"KB", "MB", "GB"}
	value := float64(b) / float64(KiB)
	i := 0

	for ; value >= 1024 && i < len(units)-1; i++ {
		value /= 1024
	}
	return strconv.FormatFloat(roundTo2(value), 'f', -1, 64) + " " + units[i]
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ParseByteSize accepts a plain byte count ("1048576") or a number followed
// by a binary unit ("25MB", "25 MiB", "512k").
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))

	for _, unit := range byteSizeUnits {
		if num, ok := strings.CutSuffix(trimmed, unit.suffix); ok {
			return parseScaled(s, strings.TrimSpace(num), unit.size)
		}
	}
	return parseScaled(s, trimmed, Byte)
}

func parseScaled(orig, num string, scale ByteSize) (ByteSize, error) {
	value, err := strconv.ParseFloat(num, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidByteSize, orig)
	}
	return ByteSize(value * float64(scale)), nil
}

// UnmarshalText allows ByteSize values in YAML configuration files.
func (b *ByteSize) UnmarshalText(text []byte) (err error) {
	*b, err = ParseByteSize(string(text))
	return
}
