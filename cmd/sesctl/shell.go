// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/dswarbrick/ses"
	"github.com/dswarbrick/ses/utils"
)

const shellHelp = `Commands:
  rows                   show the selected rows (all rows if none are selected)
  select SEL             select rows: II, TI,II, TYPE,II, dsn=N, sas=ADDR, desc=TEXT
  get FIELD              read a field of the selected rows
  set FIELD[=VALUE]      set a field of the selected rows in the pending control page
  clear FIELD            clear a field of the selected rows in the pending control page
  pending                hex dump the pending control pages
  flush                  send the pending control pages
  refresh                read and join the pages again
  page PAGE              decode a diagnostic page
  acronyms [es|th|aes]   list field acronyms
  warnings               list warnings raised by the last join
  help                   show this text
  quit                   leave the shell
`

// shell is an interactive session on a joined enclosure.
type shell struct {
	rl      *readline.Instance
	r       *ses.PageReader
	opts    ses.Options
	s       *ses.JoinSession
	rows    []*ses.JoinRow
	verbose bool
}

func newShell(r *ses.PageReader, opts ses.Options, s *ses.JoinSession, verbose bool) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ses> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &shell{rl: rl, r: r, opts: opts, s: s, verbose: verbose}, nil
}

func (sh *shell) out() io.Writer {
	return sh.rl.Stdout()
}

func (sh *shell) run() error {
	defer sh.rl.Close()

	fmt.Fprint(sh.out(), shellHelp)

	for {
		line, err := sh.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if sh.s.Pending(ses.PageEnclosureControl) != nil || sh.s.Pending(ses.PageThresholdOut) != nil {
				fmt.Fprintln(sh.out(), "Discarding unsent control pages")
			}
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(cmd) {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprint(sh.out(), shellHelp)
		default:
			if err := sh.exec(strings.ToLower(cmd), arg); err != nil {
				fmt.Fprintln(sh.rl.Stderr(), "error:", err)
			}
		}
	}
}

func (sh *shell) exec(cmd, arg string) error {
	switch cmd {
	case "rows", "r":
		ses.PrintJoin(sh.out(), sh.s, sh.rows, sh.verbose)

	case "select", "sel":
		if arg == "" {
			sh.rows = nil
			return nil
		}

		sel, err := ses.ParseSelector(arg)
		if err != nil {
			return err
		}

		rows, err := sh.s.Find(sel)
		if err != nil {
			return err
		}
		sh.rows = rows
		fmt.Fprintf(sh.out(), "%d row(s) selected\n", len(rows))

	case "get", "set", "clear":
		if len(sh.rows) == 0 {
			return errors.New("no rows selected")
		}

		kind := map[string]opKind{"get": opGet, "set": opSet, "clear": opClear}[cmd]
		var ops []fieldOp
		if err := (opFlag{kind, &ops}).Set(arg); err != nil {
			return err
		}

		return sh.apply(ops[0])

	case "pending":
		for _, page := range []ses.PageCode{ses.PageEnclosureControl, ses.PageThresholdOut} {
			if img := sh.s.Pending(page); img != nil {
				fmt.Fprintf(sh.out(), "%s page (control):\n", page)
				utils.HexDump(sh.out(), img, "  ")
			}
		}

	case "flush":
		return sh.s.Flush()

	case "refresh":
		s, err := ses.JoinDevice(sh.r, sh.opts, joinRetries)
		if err != nil {
			return err
		}
		sh.s, sh.rows = s, nil

	case "page", "p":
		return printPages(sh.out(), sh.r, arg, sh.opts.Logger)

	case "acronyms":
		page := ses.PageEnclosureStatus
		if arg != "" {
			p, err := ses.ParsePageCode(arg)
			if err != nil {
				return err
			}
			page = p
		}

		for _, a := range ses.Acronyms(page) {
			t := "any"
			if a.ElementType != ses.AnyElementType {
				t = ses.ElementType(a.ElementType).Abbrev()
			}
			fmt.Fprintf(sh.out(), "  %-16s %-4s %d:%d:%-2d  %s\n", a.Name, t, a.StartByte, a.StartBit, a.NumBits, a.Info)
		}

	case "warnings":
		for _, w := range sh.s.Warnings() {
			fmt.Fprintln(sh.out(), " ", w)
		}

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}

	return nil
}

// apply runs a single field operation on the selected rows. Writes stay pending until flush.
func (sh *shell) apply(op fieldOp) error {
	for _, r := range sh.rows {
		if op.kind == opGet {
			v, err := sh.s.GetField(r, op.spec)
			if err != nil {
				return fmt.Errorf("%s: %w", r, err)
			}
			fmt.Fprintf(sh.out(), "%s: %s=%d\n", r, op.spec, v)
			continue
		}

		if err := sh.s.SetField(r, op.spec, op.value, false); err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
	}

	return nil
}
