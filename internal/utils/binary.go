package utils

// sniffLength defines the maximum number of bytes inspected when detecting
// binary content.
const sniffLength = 8000

// IsBinary reports whether the data looks binary. Only NUL bytes within the
// sniff window count: invalid UTF-8 alone is not binary, it may be text in a
// legacy encoding.
func IsBinary(data []byte) bool {
	sniffWindow := data
	if len(sniffWindow) > sniffLength {
		sniffWindow = sniffWindow[:sniffLength]
	}
	for _, byteValue := range sniffWindow {
		if byteValue == 0 {
			return true
		}
	}
	return false
}
