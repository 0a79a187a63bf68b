// Package panel implements the pixel sink used by the render loop.
//
// Frames are drawn into *image.RGBA canvases with golang.org/x/image/font and
// handed to an Output on swap. Two outputs exist: Headless, for hosts with no
// panel attached, and SSD1306, an I2C OLED driven through periph.io.
//
// Fonts are resolved by identifier: "7x13" is built in, *.bdf files are parsed
// into fixed-width faces, *.ttf and *.otf files are rasterised with opentype,
// and bare identifiers are looked up as <fonts_dir>/<id>.bdf.
package panel
