package main

import (
	"fmt"
	"os"

	"doc-manager-app/cmd/storagecheck/cmd"
	apperrors "doc-manager-app/pkg/errors"
)

func main() {
	env := &cmd.Env{Out: os.Stdout}

	if err := cmd.RootCmd(env).Execute(); err != nil {
		appErr := apperrors.ClassifyError(err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		if action := appErr.GetSuggestedAction(); action != "" {
			fmt.Fprintln(os.Stderr, action)
		}
		os.Exit(1)
	}
}
