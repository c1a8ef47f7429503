//go:build !prefsdebug

package prefs

import "time"

const defaultSlowEditThreshold time.Duration = 0
