package llm

import "strings"

// ParseImageData splits an image payload into its MIME type and base64 body.
// Recognized data-URL prefixes map to their type; anything else defaults to
// JPEG, stripping up to the first comma when one is present.
func ParseImageData(imgData string) (mimeType, base64Data string) {
	if stripped, ok := strings.CutPrefix(imgData, "data:image/png;base64,"); ok {
		return "image/png", stripped
	}
	if stripped, ok := strings.CutPrefix(imgData, "data:image/jpeg;base64,"); ok {
		return "image/jpeg", stripped
	}
	if stripped, ok := strings.CutPrefix(imgData, "data:image/webp;base64,"); ok {
		return "image/webp", stripped
	}
	if idx := strings.Index(imgData, ","); idx >= 0 {
		return "image/jpeg", imgData[idx+1:]
	}
	return "image/jpeg", imgData
}
