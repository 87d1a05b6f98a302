package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, domain.ErrNoClusterAccess) {
			fmt.Fprintln(os.Stderr, "Could not connect to Kubernetes cluster:", err)
		}
		os.Exit(1)
	}
}
