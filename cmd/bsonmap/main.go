package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/config"
	"github.com/reoring/bsonmap/source/bsonbin"
	"github.com/reoring/bsonmap/source/extjson"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "convert":
		err = convertCmd(os.Args[2:], os.Stdin, os.Stdout)
	case "inspect":
		err = inspectCmd(os.Args[2:], os.Stdin, os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "bsonmap CLI\n\nUsage:\n  bsonmap convert -from bson|json -to json|bson [-canonical] [-in file] [-out file]\n  bsonmap inspect -from bson|json [-config settings.yaml] [-in file]")
}

type common struct {
	from    string
	in      string
	verbose bool
}

func (c *common) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.from, "from", "json", "input format: bson or json")
	fs.StringVar(&c.in, "in", "", "input file (default stdin)")
	fs.BoolVar(&c.verbose, "v", false, "development logging")
}

func (c *common) logger() (*zap.Logger, error) {
	if c.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (c *common) input(stdin io.Reader) ([]byte, error) {
	if c.in == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(c.in)
}

// readValues returns every document in the input; BSON input may hold
// several concatenated documents.
func readValues(format string, b []byte) ([]bsonmap.Value, error) {
	var out []bsonmap.Value
	switch format {
	case "bson":
		for len(b) > 0 {
			if len(b) < 4 {
				return nil, errors.New("truncated BSON input")
			}
			n := int(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
			if n < 5 || n > len(b) {
				return nil, errors.Newf("invalid BSON document length %d", n)
			}
			v, err := bsonbin.ToValue(b[:n])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			b = b[n:]
		}
	case "json":
		dec := extjson.NewDecoder(bytes.NewReader(b))
		for {
			v, err := dec.Decode()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	default:
		return nil, errors.Newf("unknown format %q", format)
	}
	return out, nil
}

func convertCmd(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	var c common
	c.bind(fs)
	var to, out string
	var canonical bool
	fs.StringVar(&to, "to", "bson", "output format: bson or json")
	fs.StringVar(&out, "out", "", "output file (default stdout)")
	fs.BoolVar(&canonical, "canonical", false, "canonical Extended JSON output")
	_ = fs.Parse(args)

	log, err := c.logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	in, err := c.input(stdin)
	if err != nil {
		return err
	}
	values, err := readValues(c.from, in)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	mode := extjson.Relaxed
	if canonical {
		mode = extjson.Canonical
	}
	for _, v := range values {
		switch to {
		case "bson":
			b, err := bsonbin.FromValue(v)
			if err != nil {
				return err
			}
			buf.Write(b)
		case "json":
			b, err := extjson.MarshalMode(v, mode)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte('\n')
		default:
			return errors.Newf("unknown format %q", to)
		}
	}
	log.Debug("converted", zap.String("from", c.from), zap.String("to", to), zap.Int("documents", len(values)))
	if out == "" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(out, buf.Bytes(), 0o644)
}

func inspectCmd(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var c common
	c.bind(fs)
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "registry settings (YAML)")
	_ = fs.Parse(args)

	log, err := c.logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	settings := &config.Settings{}
	if cfgPath != "" {
		if settings, err = config.LoadFile(cfgPath); err != nil {
			return err
		}
	}
	reg, err := settings.NewRegistry(log)
	if err != nil {
		return err
	}
	in, err := c.input(stdin)
	if err != nil {
		return err
	}
	values, err := readValues(c.from, in)
	if err != nil {
		return err
	}
	for i, v := range values {
		doc, ok := v.Document()
		if !ok {
			return errors.Newf("document %d: top-level value is not a document", i)
		}
		r := bsonmap.Enforce(reg, bsonmap.NewTreeReader(v), settings.DecodeOpt())
		if err := walk(r); err != nil {
			return errors.Wrapf(err, "document %d", i)
		}
		fmt.Fprint(stdout, describe(i, reg, doc))
	}
	return nil
}

// walk steps through every container so that the cursor policies see each element.
func walk(r bsonmap.Reader) error {
	switch r.CurrentKind() {
	case bsonmap.KindDocument:
		if err := r.ReadStartDocument(); err != nil {
			return err
		}
		for {
			k, err := r.ReadType()
			if err != nil {
				return err
			}
			if k == bsonmap.KindEndOfDocument {
				return r.ReadEndDocument()
			}
			if _, err := r.ReadName(); err != nil {
				return err
			}
			if err := walk(r); err != nil {
				return err
			}
		}
	case bsonmap.KindArray:
		if err := r.ReadStartArray(); err != nil {
			return err
		}
		for {
			k, err := r.ReadType()
			if err != nil {
				return err
			}
			if k == bsonmap.KindEndOfDocument {
				return r.ReadEndArray()
			}
			if err := walk(r); err != nil {
				return err
			}
		}
	}
	return r.SkipValue()
}

func describe(i int, reg *bsonmap.Registry, doc *bsonmap.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "document %d: %d elements, depth %d\n", i, doc.Len(), depth(bsonmap.DocumentValue(doc)))
	if tag, ok := doc.Lookup(reg.DiscriminatorElement()); ok {
		fmt.Fprintf(&b, "  discriminator %s = %s\n", reg.DiscriminatorElement(), tag)
	}
	for _, el := range doc.Elements() {
		fmt.Fprintf(&b, "  %-20s %s\n", el.Name, el.Value.Kind())
	}
	return b.String()
}

func depth(v bsonmap.Value) int {
	max := 0
	if d, ok := v.Document(); ok {
		for _, el := range d.Elements() {
			max = maxInt(max, depth(el.Value))
		}
		return max + 1
	}
	if items, ok := v.Array(); ok {
		for _, it := range items {
			max = maxInt(max, depth(it))
		}
		return max + 1
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
