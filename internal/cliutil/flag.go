// Package cliutil holds small flag-validation and numeric-clamp helpers
// used by cmd/receipt-pipeline and internal/config, adapted from
// src/pkg/util/flag.go and src/pkg/util/clamp.go.
package cliutil

import (
	"os"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

var requiredFlags = map[*string]string{}

// RequiredFlag registers flagPointer as required under the display name
// cliName; call EnsureFlags after flag.Parse to enforce it.
func RequiredFlag(flagPointer *string, cliName string) {
	requiredFlags[flagPointer] = normalizeFlagName(cliName)
}

func normalizeFlagName(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "--") {
		return s
	}
	if strings.HasPrefix(s, "-") {
		return "-" + s
	}
	return "--" + s
}

// EnsureFlags logs every missing required flag and exits(1) if any were
// left blank.
func EnsureFlags() {
	missing := false
	for flagPointer, cliName := range requiredFlags {
		if flagPointer == nil || strings.TrimSpace(*flagPointer) == "" {
			tl.Log(tl.Warning, palette.YellowBold, "%s parameter is %s", cliName, "required")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}
