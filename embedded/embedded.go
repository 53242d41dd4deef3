// Package embedded carries the default theme shipped inside the kiln binary.
package embedded

import "embed"

//go:embed themes
var DefaultTheme embed.FS
