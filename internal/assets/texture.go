package assets

import "strings"

// imageExtensionOrder is the search order for resolving a shader's or
// skin's bare texture reference against a pk3 file index: engines accept
// whichever of these exists, trying them in this order.
var imageExtensionOrder = []string{".tga", ".jpg", ".png"}

// ResolveTexture finds the actual pk3-relative path for an abstract
// texture reference (a shader stage's "map" argument, or a .skin
// surface override) by trying every extension in imageExtensionOrder.
// Returns the resolved path and true if one of them is present in
// fileIndex.
func ResolveTexture(ref string, fileIndex map[string]string) (string, bool) {
	lower := strings.ToLower(ref)

	for _, ext := range imageExtensionOrder {
		if !strings.HasSuffix(lower, ext) {
			continue
		}
		if _, ok := fileIndex[lower]; ok {
			return lower, true
		}
		return resolveExtension(lower[:len(lower)-len(ext)], fileIndex)
	}

	return resolveExtension(lower, fileIndex)
}

func resolveExtension(base string, fileIndex map[string]string) (string, bool) {
	for _, ext := range imageExtensionOrder {
		if _, ok := fileIndex[base+ext]; ok {
			return base + ext, true
		}
	}
	return "", false
}
