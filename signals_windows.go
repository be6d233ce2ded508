// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

//go:build windows

package imq

import (
	"os"
	"os/signal"
)

// waitForSignals waits for Ctrl-Break/Ctrl-C and releases any watcher lock
// this process owns before exiting.
func waitForSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	<-sigs
	releaseOwnedWatchersAndExit()
}
