package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/org/opsconsole/internal/live"
)

// detachKey is Ctrl-].
const detachKey = 0x1d

// runInteractive attaches the local terminal to t until the remote side
// closes, the user detaches or ctx is cancelled.
func runInteractive(ctx context.Context, t live.Target) error {
	fd := int(os.Stdin.Fd())
	var restore func()
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("entering raw mode: %w", err)
		}
		restore = func() { term.Restore(fd, old) } //nolint:errcheck
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			if restore != nil {
				restore()
			}
		})
	}
	defer release()

	ls := live.NewSession(live.NewDialer(mgr.Client()), &live.WriterTerminal{W: os.Stdout, OnRelease: release})
	defer ls.Close() //nolint:errcheck

	if err := ls.Select(t); err != nil {
		return err
	}
	if err := ls.Connect(ctx); err != nil {
		return mgr.Check(err)
	}
	done := ls.Done()
	fmt.Fprintf(os.Stderr, "connected to %s, Ctrl-] to detach\r\n", t)

	input := make(chan []byte)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(input)
				return
			}
			select {
			case input <- bytes.Clone(buf[:n]):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return ls.Err()
		case b, ok := <-input:
			if !ok {
				return nil
			}
			if i := bytes.IndexByte(b, detachKey); i >= 0 {
				if i > 0 {
					ls.Write(b[:i]) //nolint:errcheck
				}
				return nil
			}
			if _, err := ls.Write(b); err != nil {
				return err
			}
		}
	}
}
