// Command didresolver parses DID URLs and resolves DIDs and credentials
// against a DID resolver.
package main

import (
	"fmt"
	"os"

	"github.com/trustbloc/logutil-go/pkg/log"
)

var logger = log.New("did-resolver-cli")

func main() {
	rootCmd := newRootCmd(os.Stdout)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", log.WithError(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
