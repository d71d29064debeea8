// Command pathplan compiles a waypoint record offline and writes the command
// list as JSON, optionally with a PNG/SVG plot or an HTML chart of the trace.
//
//	pathplan -records "ALG:5,10,N,1;12,6,E,2" -png route.png
//	pathplan -in course.txt -start 0,0,N -html route.html
//	pathplan -in course.txt -title "Course 1" -outdir runs
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/config"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/monitor"
	"github.com/banshee-data/pathing/internal/security"
	"github.com/banshee-data/pathing/internal/waypoint"
)

type options struct {
	configFile string
	records    string
	in         string
	start      string
	out        string
	png        string
	svg        string
	html       string
	title      string
	outdir     string
	rescan     int
	lines      bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pathplan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configFile, "config", "", "Planner config file (.json, .yaml or .yml)")
	fs.StringVar(&o.records, "records", "", "Waypoint records, e.g. \"ALG:5,10,N,1;12,6,E,2\"")
	fs.StringVar(&o.in, "in", "", "File holding the waypoint records (\"-\" for stdin)")
	fs.StringVar(&o.start, "start", "", "Start pose x,y,H (defaults to the configured start)")
	fs.StringVar(&o.out, "out", "", "Write the JSON result here instead of stdout")
	fs.StringVar(&o.png, "png", "", "Write a PNG plot of the trace")
	fs.StringVar(&o.svg, "svg", "", "Write an SVG plot of the trace")
	fs.StringVar(&o.html, "html", "", "Write an interactive HTML chart of the trace")
	fs.StringVar(&o.title, "title", "pathplan", "Chart title")
	fs.StringVar(&o.outdir, "outdir", "", "Write the JSON result and every plot into this directory, named after -title")
	fs.IntVar(&o.rescan, "rescan", -1, "Print the rescan sequence for this scan order and exit (checked against -start when given)")
	fs.BoolVar(&o.lines, "lines", false, "Print one command per line instead of JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.rescan < 0 && o.records != "" && o.in != "" {
		return nil, errors.New("-records and -in are mutually exclusive")
	}
	if o.outdir != "" {
		base := filepath.Join(o.outdir, security.SanitizeFilename(o.title))
		for _, f := range []struct {
			path *string
			ext  string
		}{{&o.out, ".json"}, {&o.png, ".png"}, {&o.svg, ".svg"}, {&o.html, ".html"}} {
			if *f.path == "" {
				*f.path = base + f.ext
			}
		}
	}
	for _, p := range []string{o.out, o.png, o.svg, o.html} {
		if p == "" {
			continue
		}
		if err := security.ValidateOutputPath(p); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// parseStart parses "x,y,H".
func parseStart(s string) (grid.Pose, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return grid.Pose{}, fmt.Errorf("start %q: expected x,y,H", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return grid.Pose{}, fmt.Errorf("start %q: invalid x: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return grid.Pose{}, fmt.Errorf("start %q: invalid y: %w", s, err)
	}
	h, err := grid.ParseHeading(strings.TrimSpace(parts[2]))
	if err != nil {
		return grid.Pose{}, fmt.Errorf("start %q: %w", s, err)
	}
	return grid.NewPose(x, y, h), nil
}

func readRecords(o *options, stdin io.Reader) (string, error) {
	switch o.in {
	case "":
		return o.records, nil
	case "-":
		b, err := io.ReadAll(stdin)
		return string(b), err
	default:
		b, err := os.ReadFile(filepath.Clean(o.in))
		if err != nil {
			return "", fmt.Errorf("failed to read records: %w", err)
		}
		return string(b), nil
	}
}

// output is the JSON document pathplan writes.
type output struct {
	Start grid.Pose `json:"start"`
	*compiler.Result
	Stats compiler.Stats `json:"stats"`
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := config.DefaultPlannerConfig()
	if o.configFile != "" {
		if cfg, err = config.LoadPlannerConfig(o.configFile); err != nil {
			return err
		}
	}
	c, err := cfg.NewCompiler()
	if err != nil {
		return err
	}

	if o.rescan >= 0 {
		cmds, err := rescanCommands(c, o)
		if err != nil {
			return err
		}
		return writeCommands(stdout, output{Result: &compiler.Result{Commands: cmds}}, o.lines)
	}
	if o.outdir != "" {
		if err := os.MkdirAll(filepath.Clean(o.outdir), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", o.outdir, err)
		}
	}

	start, err := cfg.StartPose()
	if err != nil {
		return err
	}
	if o.start != "" {
		if start, err = parseStart(o.start); err != nil {
			return err
		}
	}

	text, err := readRecords(o, stdin)
	if err != nil {
		return err
	}
	wps, err := waypoint.ParseRecords(text)
	if err != nil {
		return err
	}
	res, err := c.Compile(start, wps)
	if err != nil {
		return err
	}

	doc := output{Start: start, Result: res, Stats: res.Stats}
	if o.out != "" {
		if err := writeFile(o.out, func(w io.Writer) error { return writeCommands(w, doc, false) }); err != nil {
			return err
		}
		log.Printf("wrote %s", o.out)
	} else if err := writeCommands(stdout, doc, o.lines); err != nil {
		return err
	}

	trace := monitor.NewTrace(o.title, c.Geometry(), start, wps, res)
	renders := []struct {
		path   string
		render func(io.Writer, monitor.Trace) error
	}{
		{o.png, monitor.RenderPNG},
		{o.svg, func(w io.Writer, t monitor.Trace) error { return monitor.RenderImage(w, t, "svg") }},
		{o.html, monitor.RenderHTML},
	}
	for _, r := range renders {
		if r.path == "" {
			continue
		}
		if err := writeFile(r.path, func(w io.Writer) error { return r.render(w, trace) }); err != nil {
			return err
		}
		log.Printf("wrote %s", r.path)
	}
	return nil
}

// rescanCommands checks the back-off against the grid when -start is given.
func rescanCommands(c *compiler.Compiler, o *options) ([]command.Command, error) {
	if o.start == "" {
		return c.RescanCommands(o.rescan)
	}
	at, err := parseStart(o.start)
	if err != nil {
		return nil, err
	}
	return c.RescanAt(at, o.rescan)
}

func writeCommands(w io.Writer, doc output, lines bool) error {
	if lines {
		for _, c := range doc.Commands {
			if _, err := fmt.Fprintln(w, c); err != nil {
				return err
			}
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if doc.Path == nil {
		// rescan sequences carry commands only
		return enc.Encode(map[string]any{"commands": doc.Commands})
	}
	return enc.Encode(doc)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("pathplan: %v", err)
	}
}
