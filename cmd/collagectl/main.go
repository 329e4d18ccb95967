// Command collagectl restores, renders and shares collage documents
// from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"collageAPI/internal/asset"
	"collageAPI/internal/config"
	"collageAPI/internal/history"
	"collageAPI/internal/render"
	"collageAPI/internal/scene"
	"collageAPI/internal/shareclient"
	"collageAPI/internal/storage"
)

const usage = `usage: collagectl <command> [flags]

commands:
  render  restore a document and write it as an image
  share   render a document and post it to a share endpoint
  save    restore a document and save it to a state file
  load    print the document held in a state file
  reset   clear a state file`

var errUsage = errors.New(usage)

func main() {
	config.SetupLogging(log.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}

	switch args[0] {
	case "render":
		return runRender(ctx, args[1:])
	case "share":
		return runShare(ctx, args[1:], out)
	case "save":
		return runSave(ctx, args[1:])
	case "load":
		return runLoad(ctx, args[1:], out)
	case "reset":
		return runReset(ctx, args[1:])
	default:
		return errUsage
	}
}

type env struct {
	table  *asset.Table
	loader *asset.Loader
	codec  *history.Codec
}

type commonFlags struct {
	assetsDir string
	tablePath string
	verbose   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.assetsDir, "assets", "./assets", "directory holding sticker and background images")
	fs.StringVar(&c.tablePath, "table", "", "optional TOML asset table")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
}

func (c *commonFlags) env() (*env, error) {
	if c.verbose {
		log.SetLevel(log.DebugLevel)
	}
	table := asset.DefaultTable()
	if c.tablePath != "" {
		var err error
		if table, err = asset.LoadTable(c.tablePath); err != nil {
			return nil, err
		}
	}
	return &env{
		table:  table,
		loader: asset.NewLoader(os.DirFS(c.assetsDir), table),
		codec:  history.NewCodec(table),
	}, nil
}

func readDocument(path string) (history.RawDocument, error) {
	var doc history.RawDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// restore rebuilds a scene from the document at path. Entries that cannot
// be restored are logged and left out.
func (e *env) restore(ctx context.Context, path string) (*scene.Scene, string, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, "", err
	}
	bg, err := e.table.ResolveBackground(doc.Background)
	if err != nil {
		log.Warnf("%v, using %s", err, e.table.DefaultBackground())
		bg = e.table.DefaultBackground()
	}

	sc := scene.New(e.loader)
	report, err := e.codec.DecodeRaw(ctx, sc, doc.History, nil)
	if err != nil {
		return nil, "", err
	}
	log.Infof("Restored %d objects, skipped %d", len(report.Created), len(report.Skipped))
	return sc, bg, nil
}

func (e *env) snapshot(ctx context.Context, path string) (*scene.Scene, string, image.Image, error) {
	sc, bg, err := e.restore(ctx, path)
	if err != nil {
		return nil, "", nil, err
	}
	r, err := render.New(e.loader)
	if err != nil {
		return nil, "", nil, err
	}
	img, err := r.Render(ctx, bg, sc.Objects())
	if err != nil {
		return nil, "", nil, err
	}
	return sc, bg, img, nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	historyPath := fs.String("history", "", "document to render")
	outPath := fs.String("out", "collage.jpg", "output file, .png or .jpg")
	quality := fs.Int("quality", render.DefaultJPEGQuality, "JPEG quality")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *historyPath == "" {
		return fmt.Errorf("render: -history is required")
	}

	e, err := common.env()
	if err != nil {
		return err
	}
	_, _, img, err := e.snapshot(ctx, *historyPath)
	if err != nil {
		return err
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(*outPath), ".png") {
		err = render.EncodePNG(f, img)
	} else {
		err = render.EncodeJPEG(f, img, *quality)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", *outPath, err)
	}
	log.Infof("Wrote %s", *outPath)
	return f.Close()
}

func runShare(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	historyPath := fs.String("history", "", "document to share")
	endpoint := fs.String("endpoint", "http://localhost:3333/api/v1/share", "share endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *historyPath == "" {
		return fmt.Errorf("share: -history is required")
	}

	e, err := common.env()
	if err != nil {
		return err
	}
	sc, bg, img, err := e.snapshot(ctx, *historyPath)
	if err != nil {
		return err
	}
	dataURL, err := render.DataURL(img, render.DefaultJPEGQuality)
	if err != nil {
		return err
	}

	resp, err := shareclient.New(*endpoint, nil).Share(ctx, dataURL, e.codec.EncodeScene(sc, bg))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, resp.Link)
	fmt.Fprintln(out, shareclient.XShareURL("My sticker collage", resp.Link))
	return nil
}

func stateFlags(name string) (*flag.FlagSet, *commonFlags, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	state := fs.String("state", "collage-state.json", "state file standing in for browser storage")
	return fs, &common, state
}

func runSave(ctx context.Context, args []string) error {
	fs, common, state := stateFlags("save")
	historyPath := fs.String("history", "", "document to save")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *historyPath == "" {
		return fmt.Errorf("save: -history is required")
	}

	e, err := common.env()
	if err != nil {
		return err
	}
	sc, bg, err := e.restore(ctx, *historyPath)
	if err != nil {
		return err
	}

	local := storage.NewLocalHistory(storage.NewFileStore(*state), e.table)
	if err := local.Save(ctx, e.codec.EncodeScene(sc, bg)); err != nil {
		return err
	}
	log.Infof("Saved %d objects to %s", sc.Len(), *state)
	return nil
}

func runLoad(ctx context.Context, args []string, out io.Writer) error {
	fs, common, state := stateFlags("load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := common.env()
	if err != nil {
		return err
	}

	doc, err := storage.NewLocalHistory(storage.NewFileStore(*state), e.table).Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func runReset(ctx context.Context, args []string) error {
	fs, common, state := stateFlags("reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, err := common.env()
	if err != nil {
		return err
	}
	return storage.NewLocalHistory(storage.NewFileStore(*state), e.table).Reset(ctx)
}
