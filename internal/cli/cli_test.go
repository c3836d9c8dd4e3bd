// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"go.osokin.dev/notifier/internal/testutil"
)

func testEnv(args ...string) (*Env, *bytes.Buffer) {
	var stderr bytes.Buffer
	return &Env{
		Args:   args,
		Getenv: func(string) string { return "" },
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: &stderr,
	}, &stderr
}

func TestRun(t *testing.T) {
	var called bool
	env, _ := testEnv("arg1", "arg2")
	err := Run(context.Background(), AppFunc(func(ctx context.Context, env *Env) error {
		called = true
		testutil.AssertEqual(t, env.Args, []string{"arg1", "arg2"})
		return nil
	}), env)
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("app was not run")
	}
}

func TestRunVersionFlag(t *testing.T) {
	env, stderr := testEnv("-version")
	err := Run(context.Background(), AppFunc(func(ctx context.Context, env *Env) error {
		t.Fatal("app should not run with -version")
		return nil
	}), env)
	if !errors.Is(err, ErrExitVersion) {
		t.Fatalf("got %v, want ErrExitVersion", err)
	}
	if isPrintableError(err) {
		t.Error("ErrExitVersion should not be printable")
	}
	if stderr.Len() == 0 {
		t.Error("version output is empty")
	}
}

func TestRunBadFlag(t *testing.T) {
	env, _ := testEnv("-no-such-flag")
	err := Run(context.Background(), AppFunc(func(ctx context.Context, env *Env) error {
		t.Fatal("app should not run with invalid flags")
		return nil
	}), env)
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	if isPrintableError(err) {
		t.Error("flag parse errors should not be printed twice")
	}
}

type flagApp struct {
	dry bool
	ran bool
}

func (a *flagApp) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&a.dry, "dry", false, "Don't publish anything.")
}

func (a *flagApp) Run(ctx context.Context, env *Env) error {
	a.ran = true
	return nil
}

func TestRunAppFlags(t *testing.T) {
	app := new(flagApp)
	env, _ := testEnv("-dry")
	if err := Run(context.Background(), app, env); err != nil {
		t.Fatal(err)
	}
	if !app.ran {
		t.Fatal("app was not run")
	}
	if !app.dry {
		t.Error("-dry flag was not parsed")
	}
}

func TestIsPrintableError(t *testing.T) {
	if isPrintableError(flag.ErrHelp) {
		t.Error("flag.ErrHelp should not be printable")
	}
	if !isPrintableError(errors.New("boom")) {
		t.Error("plain errors should be printable")
	}
}

func TestLogf(t *testing.T) {
	env, stderr := testEnv()
	env.Logf("processed %d items", 3)
	testutil.AssertEqual(t, stderr.String(), "processed 3 items\n")
}

func TestParseDocComment(t *testing.T) {
	SetDocComment([]byte(`/*
Frobnicator frobs things.

Usage: frobnicator [flags]
*/
package main
`))
	t.Cleanup(func() { SetDocComment(nil) })

	got := parseDocComment()
	testutil.AssertEqual(t, got, "Frobnicator frobs things.\n\nUsage: frobnicator [flags]\n")
}
