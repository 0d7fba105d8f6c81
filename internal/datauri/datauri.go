// Package datauri encodes byte buffers as RFC 4648 base64 text and data
// URIs. The encoder is written out by hand because the exported region
// string is specified byte-exactly: standard alphabet, 3-byte grouping,
// '=' padding, no line wrapping.
package datauri

import "strings"

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// EncodeBase64 encodes data as standard (non-URL-safe) base64.
func EncodeBase64(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data) + 2) / 3 * 4)

	i := 0
	for ; i+3 <= len(data); i += 3 {
		b0, b1, b2 := data[i], data[i+1], data[i+2]
		sb.WriteByte(alphabet[b0>>2])
		sb.WriteByte(alphabet[(b0&0x03)<<4|b1>>4])
		sb.WriteByte(alphabet[(b1&0x0f)<<2|b2>>6])
		sb.WriteByte(alphabet[b2&0x3f])
	}

	switch len(data) - i {
	case 1:
		b0 := data[i]
		sb.WriteByte(alphabet[b0>>2])
		sb.WriteByte(alphabet[(b0&0x03)<<4])
		sb.WriteString("==")
	case 2:
		b0, b1 := data[i], data[i+1]
		sb.WriteByte(alphabet[b0>>2])
		sb.WriteByte(alphabet[(b0&0x03)<<4|b1>>4])
		sb.WriteByte(alphabet[(b1&0x0f)<<2])
		sb.WriteByte('=')
	}

	return sb.String()
}

// PNG wraps PNG bytes as a data URI.
func PNG(data []byte) string {
	return "data:image/png;base64," + EncodeBase64(data)
}
