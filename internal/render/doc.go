// Package render implements the marquee render loop.
//
// The loop owns the pixel sink. Each frame it reads the display state once,
// reloads the font or color only when flagged dirty, draws the text at the
// current scroll offset into the off-screen buffer and swaps it onto the
// panel. Text scrolls right to left and re-enters from the right edge once it
// has fully left the panel.
package render
