package css

import (
	"sort"
	"strings"
)

// knownProperties is the property vocabulary checked by Validate.
// Vendor-prefixed and custom properties are always accepted.
var knownProperties = map[string]bool{
	"accent-color":               true,
	"align-content":              true,
	"align-items":                true,
	"align-self":                 true,
	"all":                        true,
	"animation":                  true,
	"animation-delay":            true,
	"animation-direction":        true,
	"animation-duration":         true,
	"animation-fill-mode":        true,
	"animation-iteration-count":  true,
	"animation-name":             true,
	"animation-play-state":       true,
	"animation-timing-function":  true,
	"appearance":                 true,
	"aspect-ratio":               true,
	"backdrop-filter":            true,
	"backface-visibility":        true,
	"background":                 true,
	"background-attachment":      true,
	"background-blend-mode":      true,
	"background-clip":            true,
	"background-color":           true,
	"background-image":           true,
	"background-origin":          true,
	"background-position":        true,
	"background-repeat":          true,
	"background-size":            true,
	"block-size":                 true,
	"border":                     true,
	"border-bottom":              true,
	"border-bottom-color":        true,
	"border-bottom-left-radius":  true,
	"border-bottom-right-radius": true,
	"border-bottom-style":        true,
	"border-bottom-width":        true,
	"border-collapse":            true,
	"border-color":               true,
	"border-image":               true,
	"border-image-outset":        true,
	"border-image-repeat":        true,
	"border-image-slice":         true,
	"border-image-source":        true,
	"border-image-width":         true,
	"border-left":                true,
	"border-left-color":          true,
	"border-left-style":          true,
	"border-left-width":          true,
	"border-radius":              true,
	"border-right":               true,
	"border-right-color":         true,
	"border-right-style":         true,
	"border-right-width":         true,
	"border-spacing":             true,
	"border-style":               true,
	"border-top":                 true,
	"border-top-color":           true,
	"border-top-left-radius":     true,
	"border-top-right-radius":    true,
	"border-top-style":           true,
	"border-top-width":           true,
	"border-width":               true,
	"bottom":                     true,
	"box-decoration-break":       true,
	"box-shadow":                 true,
	"box-sizing":                 true,
	"break-after":                true,
	"break-before":               true,
	"break-inside":               true,
	"caption-side":               true,
	"caret-color":                true,
	"clear":                      true,
	"clip":                       true,
	"clip-path":                  true,
	"color":                      true,
	"column-count":               true,
	"column-fill":                true,
	"column-gap":                 true,
	"column-rule":                true,
	"column-rule-color":          true,
	"column-rule-style":          true,
	"column-rule-width":          true,
	"column-span":                true,
	"column-width":               true,
	"columns":                    true,
	"contain":                    true,
	"container":                  true,
	"container-name":             true,
	"container-type":             true,
	"content":                    true,
	"content-visibility":         true,
	"counter-increment":          true,
	"counter-reset":              true,
	"cursor":                     true,
	"direction":                  true,
	"display":                    true,
	"empty-cells":                true,
	"fill":                       true,
	"filter":                     true,
	"flex":                       true,
	"flex-basis":                 true,
	"flex-direction":             true,
	"flex-flow":                  true,
	"flex-grow":                  true,
	"flex-shrink":                true,
	"flex-wrap":                  true,
	"float":                      true,
	"font":                       true,
	"font-display":               true,
	"font-family":                true,
	"font-feature-settings":      true,
	"font-kerning":               true,
	"font-language-override":     true,
	"font-size":                  true,
	"font-size-adjust":           true,
	"font-stretch":               true,
	"font-style":                 true,
	"font-synthesis":             true,
	"font-variant":               true,
	"font-variant-alternates":    true,
	"font-variant-caps":          true,
	"font-variant-east-asian":    true,
	"font-variant-ligatures":     true,
	"font-variant-numeric":       true,
	"font-variant-position":      true,
	"font-weight":                true,
	"gap":                        true,
	"grid":                       true,
	"grid-area":                  true,
	"grid-auto-columns":          true,
	"grid-auto-flow":             true,
	"grid-auto-rows":             true,
	"grid-column":                true,
	"grid-column-end":            true,
	"grid-column-gap":            true,
	"grid-column-start":          true,
	"grid-gap":                   true,
	"grid-row":                   true,
	"grid-row-end":               true,
	"grid-row-gap":               true,
	"grid-row-start":             true,
	"grid-template":              true,
	"grid-template-areas":        true,
	"grid-template-columns":      true,
	"grid-template-rows":         true,
	"hanging-punctuation":        true,
	"height":                     true,
	"hyphens":                    true,
	"image-rendering":            true,
	"inline-size":                true,
	"inset":                      true,
	"inset-block":                true,
	"inset-inline":               true,
	"isolation":                  true,
	"justify-content":            true,
	"justify-items":              true,
	"justify-self":               true,
	"left":                       true,
	"letter-spacing":             true,
	"line-break":                 true,
	"line-height":                true,
	"list-style":                 true,
	"list-style-image":           true,
	"list-style-position":        true,
	"list-style-type":            true,
	"margin":                     true,
	"margin-block":               true,
	"margin-bottom":              true,
	"margin-inline":              true,
	"margin-left":                true,
	"margin-right":               true,
	"margin-top":                 true,
	"max-height":                 true,
	"max-width":                  true,
	"min-height":                 true,
	"min-width":                  true,
	"mix-blend-mode":             true,
	"object-fit":                 true,
	"object-position":            true,
	"opacity":                    true,
	"order":                      true,
	"orphans":                    true,
	"outline":                    true,
	"outline-color":              true,
	"outline-offset":             true,
	"outline-style":              true,
	"outline-width":              true,
	"overflow":                   true,
	"overflow-wrap":              true,
	"overflow-x":                 true,
	"overflow-y":                 true,
	"overscroll-behavior":        true,
	"padding":                    true,
	"padding-block":              true,
	"padding-bottom":             true,
	"padding-inline":             true,
	"padding-left":               true,
	"padding-right":              true,
	"padding-top":                true,
	"page-break-after":           true,
	"page-break-before":          true,
	"page-break-inside":          true,
	"perspective":                true,
	"perspective-origin":         true,
	"place-content":              true,
	"place-items":                true,
	"place-self":                 true,
	"pointer-events":             true,
	"position":                   true,
	"quotes":                     true,
	"resize":                     true,
	"right":                      true,
	"rotate":                     true,
	"row-gap":                    true,
	"scale":                      true,
	"scroll-behavior":            true,
	"scroll-margin":              true,
	"scroll-padding":             true,
	"scroll-snap-align":          true,
	"scroll-snap-type":           true,
	"src":                        true,
	"stroke":                     true,
	"stroke-width":               true,
	"tab-size":                   true,
	"table-layout":               true,
	"text-align":                 true,
	"text-align-last":            true,
	"text-combine-upright":       true,
	"text-decoration":            true,
	"text-decoration-color":      true,
	"text-decoration-line":       true,
	"text-decoration-style":      true,
	"text-indent":                true,
	"text-justify":               true,
	"text-orientation":           true,
	"text-overflow":              true,
	"text-shadow":                true,
	"text-transform":             true,
	"text-underline-position":    true,
	"text-wrap":                  true,
	"top":                        true,
	"touch-action":               true,
	"transform":                  true,
	"transform-origin":           true,
	"transform-style":            true,
	"transition":                 true,
	"transition-delay":           true,
	"transition-duration":        true,
	"transition-property":        true,
	"transition-timing-function": true,
	"translate":                  true,
	"unicode-bidi":               true,
	"unicode-range":              true,
	"user-select":                true,
	"vertical-align":             true,
	"visibility":                 true,
	"white-space":                true,
	"widows":                     true,
	"width":                      true,
	"will-change":                true,
	"word-break":                 true,
	"word-spacing":               true,
	"word-wrap":                  true,
	"writing-mode":               true,
	"z-index":                    true,
}

// IsKnownProperty reports whether name is a recognised CSS property.
func IsKnownProperty(name string) bool {
	if strings.HasPrefix(name, "--") || strings.HasPrefix(name, "-") {
		return true
	}
	return knownProperties[strings.ToLower(name)]
}

// KnownProperties returns the property vocabulary in sorted order.
func KnownProperties() []string {
	out := make([]string, 0, len(knownProperties))
	for p := range knownProperties {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
