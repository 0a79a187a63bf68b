// Package display holds the panel's shared display state.
//
// State is written by the connection supervisor (control messages, status
// text) and read once per frame by the render loop. One lock guards every
// control-derived field so a frame never mixes fields from two messages.
//
// The font and color dirty flags are set only when a message changes the
// value and are cleared by the render loop once it has reloaded the resource.
package display
