package prometheus

import "strconv"

func uintToString(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
