// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", parleyerr.Reason(err, err.Error()))
		os.Exit(1)
	}
}
