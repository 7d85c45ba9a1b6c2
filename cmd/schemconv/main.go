// Command schemconv inspects and converts Minecraft schematics.
//
//	schemconv info house.litematic
//	schemconv convert house.litematic house.schem
//	schemconv pile --origin 0,64,0 lobby.schem overworld.pile
package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/goccy/go-json"
	"github.com/oriumgames/pile/format"
	"github.com/oriumgames/schem"
	"github.com/oriumgames/schem/compression"
	"github.com/oriumgames/schem/dialect"
	"github.com/oriumgames/schem/nbt"
	"github.com/oriumgames/schem/voxel"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "schemconv:", err)
		os.Exit(1)
	}
}

// env is the state shared by every command once flags and config are resolved.
type env struct {
	cfg  Config
	log  *slog.Logger
	opts []schem.Option
}

func newApp() *cli.App {
	var e env
	return &cli.App{
		Name:  "schemconv",
		Usage: "inspect and convert Minecraft schematics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{configEnv}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "from", Usage: "input format; detected when empty"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			level, err := cfg.level()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
			e.opts = cfg.options(e.log)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print dimensions, metadata and block counts",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Value: 10, Usage: "number of block states to list"},
				},
				Action: e.info,
			},
			{
				Name:      "convert",
				Usage:     "convert a schematic to another format",
				ArgsUsage: "<input> <output>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "output format; defaults to the output extension"},
					&cli.StringFlag{Name: "compression", Usage: "none, gzip, zlib or zstd"},
					&cli.BoolFlag{Name: "trim", Usage: "cut away air around the blocks"},
				},
				Action: e.convert,
			},
			{
				Name:      "dump",
				Usage:     "print the tag tree of a schematic",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the decoded region as JSON instead"},
				},
				Action: e.dump,
			},
			{
				Name:      "pile",
				Usage:     "place a schematic in a pile world",
				ArgsUsage: "<input> <output.pile>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "origin", Value: "0,64,0", Usage: "world position of the minimum corner"},
					&cli.StringFlag{Name: "level", Value: "best", Usage: "none, fast, default or best"},
				},
				Action: e.pile,
			},
		},
	}
}

func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", c.Command.Name, n, c.NArg())
	}
	return c.Args().Slice(), nil
}

func (e *env) load(c *cli.Context, path string) (*schem.Region, error) {
	hint := schem.FormatAuto
	if name := c.String("from"); name != "" {
		f, err := dialect.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		hint = f
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := schem.Load(data, hint, e.opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return r, nil
}

func (e *env) info(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	r, err := e.load(c, a[0])
	if err != nil {
		return err
	}
	out := c.App.Writer
	w, h, l := r.Dimensions()
	fmt.Fprintf(out, "source:      %s\n", r.Metadata.Source)
	fmt.Fprintf(out, "size:        %dx%dx%d (offset %d,%d,%d)\n", w, h, l, r.Offset[0], r.Offset[1], r.Offset[2])
	if _, size, ok := r.Bounds(); ok && size != (voxel.Pos{w, h, l}) {
		fmt.Fprintf(out, "trimmed:     %dx%dx%d\n", size[0], size[1], size[2])
	}
	if m := r.Metadata; m.Name != "" || m.Author != "" {
		fmt.Fprintf(out, "name:        %s\n", m.Name)
		fmt.Fprintf(out, "author:      %s\n", m.Author)
	}
	if v := r.Metadata.DataVersion; v != 0 {
		fmt.Fprintf(out, "data:        %d\n", v)
	}
	fmt.Fprintf(out, "palette:     %d states\n", r.Palette().Len())
	fmt.Fprintf(out, "entities:    %d block, %d free\n", len(r.BlockEntities()), len(r.Entities()))

	type count struct {
		state string
		n     int
	}
	var counts []count
	for s, n := range r.Counts() {
		counts = append(counts, count{s, n})
	}
	slices.SortFunc(counts, func(a, b count) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return strings.Compare(a.state, b.state)
	})
	for _, ct := range counts[:min(len(counts), max(0, c.Int("top")))] {
		fmt.Fprintf(out, "%10d  %s\n", ct.n, ct.state)
	}
	return nil
}

func (e *env) convert(c *cli.Context) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}
	f, err := e.cfg.target(c.String("to"), a[1])
	if err != nil {
		return err
	}
	mode, err := e.cfg.envelope(c.String("compression"), f)
	if err != nil {
		return err
	}
	r, err := e.load(c, a[0])
	if err != nil {
		return err
	}
	if c.Bool("trim") {
		r = r.Trimmed()
	}
	data, err := schem.Save(r, f, mode, e.opts...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a[1], data, 0644); err != nil {
		return err
	}
	e.log.Info("converted schematic", "from", r.Metadata.Source, "to", f, "compression", mode, "bytes", len(data))
	return nil
}

func (e *env) dump(c *cli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		r, err := e.load(c, a[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}
	data, err := os.ReadFile(a[0])
	if err != nil {
		return err
	}
	maxSize := e.cfg.MaxDecompressedSize
	payload, mode, err := compression.Open(data, maxSize)
	if err != nil {
		return err
	}
	e.log.Debug("opened envelope", "compression", mode, "bytes", len(payload))

	in := dialect.NewInput(payload, dialect.Options{MaxDepth: e.cfg.MaxDepth, MaxSize: maxSize, MaxVolume: e.cfg.MaxVolume, Logger: e.log})
	if name, root, err := in.Java(); err == nil {
		fmt.Fprintf(c.App.Writer, "%q: %s\n", name, nbt.Stringify(root))
		return nil
	}
	root, err := in.Bedrock()
	if err != nil {
		return fmt.Errorf("%s is not a tag tree: %w", a[0], err)
	}
	fmt.Fprintln(c.App.Writer, nbt.Stringify(root))
	return nil
}

var pileLevels = map[string]format.CompressionLevel{
	"none":    format.CompressionLevelNone,
	"fast":    format.CompressionLevelFast,
	"default": format.CompressionLevelDefault,
	"best":    format.CompressionLevelBest,
}

func (e *env) pile(c *cli.Context) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}
	origin, err := parsePos(c.String("origin"))
	if err != nil {
		return err
	}
	level, ok := pileLevels[strings.ToLower(c.String("level"))]
	if !ok {
		return fmt.Errorf("unknown pile compression level %q", c.String("level"))
	}
	r, err := e.load(c, a[0])
	if err != nil {
		return err
	}

	out, err := os.Create(a[1])
	if err != nil {
		return err
	}
	defer out.Close()
	if err := schem.WritePile(out, r, origin, world.Overworld.Range(), level); err != nil {
		return err
	}
	w, h, l := r.Dimensions()
	e.log.Info("wrote pile world", "path", a[1], "size", fmt.Sprintf("%dx%dx%d", w, h, l), "origin", origin)
	return out.Close()
}

// parsePos parses "x,y,z".
func parsePos(s string) (cube.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return cube.Pos{}, fmt.Errorf("position %q: want x,y,z", s)
	}
	var p cube.Pos
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return cube.Pos{}, fmt.Errorf("position %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}
