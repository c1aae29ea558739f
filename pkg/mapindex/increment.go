package mapindex

// incrementBytes advances buf to its byte-string successor in place, skipping
// the final byte (the encoding's trailing terminator). Starting from the
// second-to-last byte, a byte at or above 127 resets to 0 and carries left;
// the first byte below 127 receives the increment and the walk stops.
// Returns false when the carry runs past the start of the buffer, i.e. the
// value is already the maximum representable bound.
func incrementBytes(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	for i := len(buf) - 2; i >= 0; i-- {
		if buf[i] >= 127 {
			buf[i] = 0
			continue
		}
		buf[i]++
		return true
	}
	return false
}
