package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/izo/unwebarchiver/internal/bplist"
	"github.com/izo/unwebarchiver/internal/export"
	"github.com/izo/unwebarchiver/internal/webarchive"
)

const marginFlagName = "recursion-margin"

func marginFlag() cli.Flag {
	return &cli.UintFlag{
		Name:  marginFlagName,
		Usage: "Decode steps allowed beyond the declared object count",
		Value: bplist.DefaultRecursionMargin,
	}
}

// decodeFile reads and decodes the archive named by the first argument.
func decodeFile(cmd *cli.Command) (*webarchive.WebArchive, string, error) {
	name := cmd.Args().First()
	if name == "" {
		return nil, "", cli.Exit("missing archive file argument", 2)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, "", err
	}
	a, err := webarchive.Decode(data, bplist.WithRecursionMargin(uint64(cmd.Uint(marginFlagName))))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", name, err)
	}
	return a, name, nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "List the resources of an archive",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the decoded archive as JSON"},
			marginFlag(),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			a, _, err := decodeFile(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			return printResources(os.Stdout, a, "")
		},
	}
}

func printResources(w io.Writer, a *webarchive.WebArchive, indent string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s#\tDOMAIN\tFILE\tSIZE\tMIME\n", indent)
	for i, r := range a.Resources() {
		fmt.Fprintf(tw, "%s%d\t%s\t%s\t%s\t%s\n", indent, i, r.Domain, r.FileName, r.HumanSize(), r.MIMEType)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for i, sub := range a.SubframeArchives {
		fmt.Fprintf(w, "%sframe %d: %s\n", indent, i, sub.MainResource.URL)
		if err := printResources(w, sub, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Write every resource payload to a directory or a ZIP bundle",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Target directory"},
			&cli.StringFlag{Name: "zip", Usage: "Write a ZIP bundle to this file instead"},
			&cli.StringFlag{Name: "compression", Usage: "ZIP compression: deflate, store or zstd", Value: "deflate"},
			marginFlag(),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			out, zipPath := cmd.String("out"), cmd.String("zip")
			if (out == "") == (zipPath == "") {
				return cli.Exit("exactly one of --out or --zip is required", 2)
			}
			c, err := export.ParseCompression(cmd.String("compression"))
			if err != nil {
				return err
			}
			a, _, err := decodeFile(cmd)
			if err != nil {
				return err
			}

			if out != "" {
				written, err := export.Extract(out, a)
				for _, p := range written {
					fmt.Println(p)
				}
				return err
			}
			return writeFile(zipPath, func(w io.Writer) error {
				return export.Bundle(w, a, export.BundleOptions{Compression: c, Modified: time.Now()})
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Render an archive as a Markdown report, a print-ready HTML page or a ZIP bundle",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "markdown, html or zip", Value: "markdown"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
			marginFlag(),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			f, err := export.ParseFormat(cmd.String("format"))
			if err != nil {
				return err
			}
			a, _, err := decodeFile(cmd)
			if err != nil {
				return err
			}
			write := func(w io.Writer) error {
				return export.Write(w, a, f, time.Now(), export.BundleOptions{})
			}
			if out := cmd.String("out"); out != "" {
				return writeFile(out, write)
			}
			return write(os.Stdout)
		},
	}
}

// writeFile creates name and removes it again if fill fails.
func writeFile(name string, fill func(io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	return f.Close()
}
