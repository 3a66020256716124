package tabs

import "errors"

var (
	ErrUnknownPreset = errors.New("tabs: unknown preset")
	ErrUnknownTab    = errors.New("tabs: unknown tab")
	ErrLastTab       = errors.New("tabs: cannot remove the last tab")
	ErrTooManyTabs   = errors.New("tabs: tab limit reached")
)
