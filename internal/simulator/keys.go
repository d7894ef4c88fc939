package simulator

import (
	"strings"
	"unicode"
)

// KeyInfo is the resolved identity of one keyboard key, carrying everything
// the dispatched keydown/keypress/keyup events need.
type KeyInfo struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`
}

// specialKeys covers the control keys the recorder captures. Everything else
// is treated as a printable character.
var specialKeys = map[string]KeyInfo{
	"Enter":      {Key: "Enter", Code: "Enter", KeyCode: 13},
	"Tab":        {Key: "Tab", Code: "Tab", KeyCode: 9},
	"Escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
}

// LookupKey resolves a recorded key name to its dispatch identity.
func LookupKey(key string) KeyInfo {
	if info, ok := specialKeys[key]; ok {
		return info
	}
	if len([]rune(key)) == 1 {
		r := []rune(key)[0]
		upper := unicode.ToUpper(r)
		info := KeyInfo{Key: key, KeyCode: int(upper)}
		switch {
		case unicode.IsLetter(r):
			info.Code = "Key" + string(upper)
		case unicode.IsDigit(r):
			info.Code = "Digit" + string(r)
		case r == ' ':
			info.Code = "Space"
			info.KeyCode = 32
		}
		return info
	}
	// Unknown named key: pass it through and let the page interpret it.
	return KeyInfo{Key: key, Code: key}
}

// IsControlKey reports whether a key belongs to the fixed set the recorder
// captures as keypress steps.
func IsControlKey(key string) bool {
	_, ok := specialKeys[key]
	return ok
}

// TextControlKeys are the only control keys recorded while focus is inside a
// text control; the rest are implied by the subsequent input debounce.
func IsTextControlKey(key string) bool {
	switch key {
	case "Enter", "Tab", "Escape":
		return true
	}
	return false
}

// NormalizeKeyName maps common aliases from older capture payloads.
func NormalizeKeyName(key string) string {
	switch strings.ToLower(key) {
	case "esc":
		return "Escape"
	case "return":
		return "Enter"
	}
	return key
}
