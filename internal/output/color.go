package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ResolveColorMode turns the --color flag into a yes/no. "never" and
// "always" are absolute; anything else means auto: color on a terminal
// unless NO_COLOR is set.
func ResolveColorMode(colorMode string, isTTY bool) bool {
	switch colorMode {
	case "never":
		return false
	case "always":
		return true
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return isTTY
}

// IsTTY reports whether w is a terminal (including Cygwin/MSYS ptys).
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
