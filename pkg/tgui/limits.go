package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data limit in bytes, measured on
// the full "group:op:payload" string.
const MaxCallbackDataLen = 64

// MaxButtonTextRunes keeps button labels readable on small screens.
const MaxButtonTextRunes = 40

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
