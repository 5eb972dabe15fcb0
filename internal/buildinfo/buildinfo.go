// Package buildinfo exposes build metadata injected at link time.
package buildinfo

import (
	"fmt"
	"io"
)

// Set via -ldflags "-X github.com/dmitrijs2005/lexisync/internal/buildinfo.Version=..."
var (
	Version   = "N/A"
	BuildDate = "N/A"
)

// PrintBuildData writes the version banner to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "lexisync %s (built %s)\n", Version, BuildDate)
}
