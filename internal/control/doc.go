// Package control decodes control messages published to the panel's topic.
//
// A control message is a JSON object with optional fields:
//
//	{"message": "Hello", "brightness": 100, "timestamp": "2024-05-01T10:00:00",
//	 "status": "on", "color": "[0,255,0]", "font": "fonts/6x10.bdf"}
//
// Decoding is pure. A payload that is not an object is rejected whole; an
// invalid color only drops the color and the rest of the message is usable.
package control
