package common

// Keys delivered by the window's key callback. Letters are reported upper case.
const (
	KeyR     = 'R' // reload shaders and rebuild pipelines
	KeyV     = 'V' // toggle vsync
	KeyZ     = 'Z' // toggle the depth pre-pass
	KeySpace = ' ' // pause dynamic object animation
)
