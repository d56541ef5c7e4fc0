// Command mergepdf merges JPEG/PNG images and PDF documents into one PDF.
//
//	mergepdf [-o out.pdf] [-page-size A4|WxH] [-grid RxC] [-margin mm] [-spacing mm] files...
//	mergepdf -info files...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/drummonds/pdfmerge/config"
	"github.com/drummonds/pdfmerge/document"
	"github.com/drummonds/pdfmerge/document/pdfinfo"
	"github.com/drummonds/pdfmerge/internal/build"
	"github.com/drummonds/pdfmerge/layout"
	"github.com/drummonds/pdfmerge/merge"
)

// exitCancelled is the conventional status for a process stopped by SIGINT
const exitCancelled = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, merge.ErrCancelled):
		fmt.Fprintln(os.Stderr, "cancelled by user")
		os.Exit(exitCancelled)
	default:
		fmt.Fprintln(os.Stderr, "mergepdf:", err)
		os.Exit(1)
	}
}

type options struct {
	output    string
	pageSize  string
	grid      string
	margin    float64
	spacing   float64
	inspector string
	info      bool
	verbose   bool
	version   bool
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet("mergepdf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.output, "o", "merged.pdf", "output PDF path")
	fs.StringVar(&opts.pageSize, "page-size", "", "page size for images: A4, A3, LETTER or WxH in mm (default: image size)")
	fs.StringVar(&opts.grid, "grid", "", "images per page as RxC (default 1x1)")
	fs.Float64Var(&opts.margin, "margin", -1, "page margin in mm")
	fs.Float64Var(&opts.spacing, "spacing", -1, "spacing between grid cells in mm")
	fs.StringVar(&opts.inspector, "inspector", pdfinfo.BackendLedongthuc, "PDF reader used to count pages: ledongthuc, fitz or pdfium")
	fs.BoolVar(&opts.info, "info", false, "print file information instead of merging")
	fs.BoolVar(&opts.verbose, "verbose", false, "log merge steps to stderr")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: mergepdf [flags] files...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

// layoutFor starts from the MERGE_* environment defaults and applies flags
func layoutFor(opts options) (layout.Config, error) {
	cfg, err := config.MergeDefaults()
	if err != nil {
		return cfg, fmt.Errorf("merge defaults: %w", err)
	}
	if opts.pageSize != "" {
		if cfg.PageSize, err = layout.ParsePageSize(opts.pageSize); err != nil {
			return cfg, err
		}
	}
	if opts.grid != "" {
		if cfg.Rows, cfg.Cols, err = layout.ParseGrid(opts.grid); err != nil {
			return cfg, err
		}
	}
	if opts.margin >= 0 {
		cfg.MarginMM = opts.margin
	}
	if opts.spacing >= 0 {
		cfg.SpacingMM = opts.spacing
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	config.LoadEnvFiles()
	opts, files, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, "mergepdf", build.Version)
		return nil
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := config.NewLogger(stderr, level)
	merge.Logger = logger
	document.Logger = logger

	inspector, err := pdfinfo.New(opts.inspector)
	if err != nil {
		return err
	}
	defer inspector.Close()

	if opts.info {
		return printInfo(stdout, files, inspector)
	}

	cfg, err := layoutFor(opts)
	if err != nil {
		return err
	}

	sink := merge.SinkFunc(func(current, total int, message string) {
		fmt.Fprintf(stdout, "[%d/%d] %s\n", current, total, message)
	})
	result, err := merge.New(merge.WithInspector(inspector)).Merge(ctx, merge.NewJob(files, opts.output, cfg), sink)
	if err != nil {
		if kind := merge.KindOf(err); kind != merge.KindCancelled {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d pages to %s\n", result.Pages, result.OutputPath)
	return nil
}

// printInfo writes one JSON document per file
func printInfo(w io.Writer, files []string, inspector pdfinfo.Inspector) error {
	if len(files) == 0 {
		return merge.ErrEmptyInput
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, path := range files {
		info, err := merge.GetFileInfo(path, inspector)
		if err != nil {
			return err
		}
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	return nil
}
