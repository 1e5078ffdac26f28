package misc

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials tells the user where the token record was written.
func LogSavingCredentials(w io.Writer, path string) {
	if path == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "Saving credentials to %s\n", filepath.Clean(path))
}

// LogCredentialSeparator adds a visual separator to group login logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
