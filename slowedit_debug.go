//go:build prefsdebug

package prefs

import "time"

const defaultSlowEditThreshold = 10 * time.Millisecond
