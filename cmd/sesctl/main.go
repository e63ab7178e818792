// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// sesctl reads, decodes and controls SCSI enclosure services devices.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/ses"
	"github.com/dswarbrick/ses/quirks"
	"github.com/dswarbrick/ses/scsi"
	"github.com/dswarbrick/ses/snapshot"
)

const (
	_LINUX_CAPABILITY_VERSION_3 = 0x20080522

	CAP_SYS_RAWIO = 1 << 17
	CAP_SYS_ADMIN = 1 << 21

	joinRetries = 3
)

type capHeader struct {
	version uint32
	pid     int
}

type capData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

type capsV3 struct {
	hdr  capHeader
	data [2]capData
}

// checkCaps invokes the capget syscall to check for necessary capabilities. Note that this depends
// on the binary having the capabilities set (i.e., via the `setcap` utility), and on VFS support.
// Alternatively, if the binary is executed as root, it automatically has all capabilities set.
func checkCaps() {
	caps := new(capsV3)
	caps.hdr.version = _LINUX_CAPABILITY_VERSION_3

	// Use RawSyscall since we do not expect it to block
	_, _, e1 := unix.RawSyscall(unix.SYS_CAPGET, uintptr(unsafe.Pointer(&caps.hdr)), uintptr(unsafe.Pointer(&caps.data)), 0)
	if e1 != 0 {
		fmt.Fprintln(os.Stderr, "capget() failed:", e1.Error())
		return
	}

	if (caps.data[0].effective&CAP_SYS_RAWIO == 0) && (caps.data[0].effective&CAP_SYS_ADMIN == 0) {
		fmt.Fprintln(os.Stderr, "Neither cap_sys_rawio nor cap_sys_admin are in effect. Device access will probably fail.")
	}
}

type opKind int

const (
	opGet opKind = iota
	opSet
	opClear
)

// fieldOp is one -get, -set or -clear argument.
type fieldOp struct {
	kind  opKind
	spec  ses.FieldSpec
	value uint64
}

// opFlag appends to a list shared by -get, -set and -clear, so that their order on the
// command line is kept.
type opFlag struct {
	kind opKind
	ops  *[]fieldOp
}

func (f opFlag) String() string { return "" }

func (f opFlag) Set(s string) error {
	op := fieldOp{kind: f.kind}

	field, value, hasValue := strings.Cut(s, "=")
	if hasValue && f.kind != opSet {
		return fmt.Errorf("unexpected value in %q", s)
	}

	spec, err := ses.ParseFieldSpec(field)
	if err != nil {
		return err
	}
	op.spec = spec

	switch {
	case f.kind == opSet && hasValue:
		if op.value, err = ses.ParseValue(value); err != nil {
			return fmt.Errorf("bad value %q: %w", value, err)
		}
	case f.kind == opSet:
		op.value = 1
	}

	*f.ops = append(*f.ops, op)
	return nil
}

// runOps applies ops to every selected row. Writes are batched and flushed with the last one.
func runOps(w io.Writer, s *ses.JoinSession, rows []*ses.JoinRow, ops []fieldOp) error {
	lastWrite := -1
	for i, op := range ops {
		if op.kind != opGet {
			lastWrite = i
		}
	}

	for ri, r := range rows {
		for i, op := range ops {
			last := i == lastWrite && ri == len(rows)-1

			switch op.kind {
			case opGet:
				v, err := s.GetField(r, op.spec)
				if err != nil {
					return fmt.Errorf("%s: %w", r, err)
				}
				fmt.Fprintf(w, "%s: %s=%d\n", r, op.spec, v)

			case opSet, opClear:
				if err := s.SetField(r, op.spec, op.value, last); err != nil {
					return fmt.Errorf("%s: %w", r, err)
				}
			}
		}
	}

	return nil
}

// openTransport opens either a snapshot or a device. The returned close function is never nil.
func openTransport(device, snapIn string, timeout uint) (ses.Transport, [3]string, func(), error) {
	var ident [3]string

	if snapIn != "" {
		snap, err := snapshot.ReadFile(snapIn)
		if err != nil {
			return nil, ident, func() {}, err
		}

		ident = [3]string{snap.Vendor, snap.Product, snap.Revision}
		return snap.Transport(), ident, func() {}, nil
	}

	checkCaps()

	d := scsi.NewSCSIDevice(device)
	d.Timeout = uint32(timeout)
	if err := d.Open(); err != nil {
		return nil, ident, func() {}, err
	}

	inq, err := d.Inquiry()
	if err != nil {
		d.Close()
		return nil, ident, func() {}, err
	}

	if inq.DeviceType() != scsi.PDT_SES {
		fmt.Fprintf(os.Stderr, "%s is not an enclosure services device (peripheral device type %#x)\n",
			device, inq.DeviceType())
	}

	ident = [3]string{
		strings.TrimSpace(string(inq.VendorIdent[:])),
		strings.TrimSpace(string(inq.ProductIdent[:])),
		strings.TrimSpace(string(inq.ProductRev[:])),
	}

	return d, ident, func() { d.Close() }, nil
}

// printPages prints the requested pages. "all" prints every supported page.
func printPages(w io.Writer, r *ses.PageReader, which string, log *slog.Logger) error {
	var codes []ses.PageCode

	if which == "all" {
		supported, err := r.SupportedPages()
		if err != nil {
			return err
		}
		codes = supported
	} else {
		for _, p := range strings.Split(which, ",") {
			code, err := ses.ParsePageCode(p)
			if err != nil {
				return err
			}
			codes = append(codes, code)
		}
	}

	// Status style pages are only readable with the type headers of the Configuration page.
	var cfg *ses.Configuration
	if p, err := r.Read(ses.PageConfiguration); err != nil {
		log.Debug("configuration page unavailable, decoding without element types", "err", err)
	} else if cfg, err = ses.ParseConfiguration(p.Raw, 0); err != nil {
		log.Debug("configuration page unreadable, decoding without element types", "err", err)
		cfg = nil
	}

	for _, code := range codes {
		p, err := r.Read(code)
		if err != nil {
			return err
		}

		if err := ses.PrintPage(w, p.Raw, cfg); err != nil {
			return fmt.Errorf("decoding %s page: %w", code, err)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// config holds the command line settings.
type config struct {
	device      string
	page        string
	join        bool
	ops         []fieldOp
	sel         string
	eiioe       string
	maskIgn     bool
	snapIn      string
	snapOut     string
	yaml        bool
	quirks      string
	interactive bool
	verbose     bool
	timeout     uint
}

func main() {
	var c config

	flag.StringVar(&c.device, "device", "", "SCSI generic enclosure device, e.g., /dev/sg3")
	flag.StringVar(&c.page, "page", "", "Diagnostic page(s) to decode, by abbreviation or number (comma separated), or \"all\"")
	flag.BoolVar(&c.join, "join", false, "Join the Configuration, Status, Threshold, Descriptor and Additional Status pages")
	flag.Var(opFlag{opGet, &c.ops}, "get", "Read a field (acronym or [page:]byte:bit[:bits]) of the selected elements; repeatable")
	flag.Var(opFlag{opSet, &c.ops}, "set", "Set a field (FIELD[=VALUE], default 1) of the selected elements; repeatable")
	flag.Var(opFlag{opClear, &c.ops}, "clear", "Clear a field of the selected elements; repeatable")
	flag.StringVar(&c.sel, "select", "", "Elements to operate on: II, TI,II, TYPE,II, dsn=N, sas=ADDR or desc=TEXT")
	flag.StringVar(&c.eiioe, "eiioe", "", "EIIOE handling for Additional Element Status: declared, auto or force")
	flag.BoolVar(&c.maskIgn, "mask-ign", false, "Do not apply the element write mask when building Enclosure Control pages")
	flag.StringVar(&c.snapIn, "snapshot-in", "", "Read pages from a snapshot file instead of a device")
	flag.StringVar(&c.snapOut, "snapshot-out", "", "Save all supported pages to a snapshot file (.yaml or .cbor)")
	flag.BoolVar(&c.yaml, "yaml", false, "Print the join as YAML")
	flag.StringVar(&c.quirks, "quirks", "", "Enclosure quirk database (YAML)")
	flag.BoolVar(&c.interactive, "interactive", false, "Start an interactive shell on the joined enclosure")
	flag.BoolVar(&c.verbose, "verbose", false, "Verbose output and debug logging")
	flag.UintVar(&c.timeout, "timeout", 0, "SCSI command timeout in milliseconds (0 for the default)")
	flag.Parse()

	// Per-row join warnings are only shown with -verbose.
	level := slog.LevelError
	if c.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if c.device == "" && c.snapIn == "" {
		fmt.Println("Go sesctl")
		fmt.Printf("Built with %s on %s (%s)\n\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(c, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c config, log *slog.Logger) error {
	t, ident, closeFn, err := openTransport(c.device, c.snapIn, c.timeout)
	if err != nil {
		return err
	}
	defer closeFn()

	r := ses.NewPageReader(t, log)
	opts := ses.Options{IgnoreMask: c.maskIgn, Logger: log}

	if opts.Eiioe, err = ses.ParseEiioeMode(c.eiioe); err != nil {
		return err
	}

	if c.quirks != "" {
		db, err := quirks.OpenQuirkDb(c.quirks)
		if err != nil {
			return err
		}

		if model, ok := db.LookupEnclosure(ident[0], ident[1]); ok {
			if model.Warning != "" {
				fmt.Fprintf(os.Stderr, "WARNING: %s\n", model.Warning)
			}
			if c.eiioe == "" {
				opts.Eiioe, _ = model.Mode()
				log.Info("using EIIOE mode from quirk database", "quirk", model.Name, "eiioe", opts.Eiioe.String())
			}
		}
	}

	if c.snapOut != "" {
		snap, err := snapshot.Capture(r, nil, log)
		if err != nil {
			return err
		}

		snap.Device = c.device
		snap.Vendor, snap.Product, snap.Revision = ident[0], ident[1], ident[2]

		if err := snapshot.WriteFile(c.snapOut, snap); err != nil {
			return err
		}
	}

	if c.page != "" {
		if err := printPages(os.Stdout, r, c.page, log); err != nil {
			return err
		}
	}

	if !c.join && len(c.ops) == 0 && !c.interactive {
		return nil
	}

	s, err := ses.JoinDevice(r, opts, joinRetries)
	if err != nil {
		return err
	}

	if c.interactive {
		sh, err := newShell(r, opts, s, c.verbose)
		if err != nil {
			return err
		}
		return sh.run()
	}

	var rows []*ses.JoinRow
	if c.sel != "" {
		selector, err := ses.ParseSelector(c.sel)
		if err != nil {
			return err
		}
		if rows, err = s.Find(selector); err != nil {
			return fmt.Errorf("%s: %w", c.sel, err)
		}
	}

	if len(c.ops) > 0 {
		if rows == nil {
			return errors.New("-get, -set and -clear need -select")
		}
		return runOps(os.Stdout, s, rows, c.ops)
	}

	if c.yaml {
		out, err := yaml.Marshal(s.View(rows))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	ses.PrintJoin(os.Stdout, s, rows, c.verbose)

	return nil
}
