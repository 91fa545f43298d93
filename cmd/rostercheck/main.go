// Command rostercheck runs the roster importer against a spreadsheet
// without a session or database, so operators can check a client's file
// before it is uploaded.
//
// Usage:
//
//	rostercheck -sedes "SEDE NORTE,SEDE SUR" usuarios.xlsx
//	rostercheck -json -sedes "SEDE NORTE" usuarios.csv
//
// The roster policy is read from the same ROSTER_* variables as the server.
// Exit status is 0 when every row is accepted, 1 when some row was
// rejected and 2 when the file could not be checked.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sievert/ingreso/internal/config"
	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/spreadsheet"
)

const (
	exitOK       = 0
	exitRejected = 1
	exitFailed   = 2
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type report struct {
	File       string           `json:"file"`
	TotalRows  int              `json:"total_rows"`
	Accepted   int              `json:"accepted"`
	Records    int              `json:"records"`
	Rejections []core.Rejection `json:"rejections"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rostercheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	facilities := fs.String("sedes", "", "comma-separated registered facility names")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: rostercheck [-json] -sedes NAMES FILE")
		return exitFailed
	}

	rc, err := config.LoadRoster()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}

	rep, err := check(ctx, fs.Arg(0), splitNames(*facilities), rc.Policy())
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", fs.Arg(0), core.FormatUserError(err))
		return exitFailed
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
	} else {
		printReport(stdout, rep)
	}

	if len(rep.Rejections) > 0 {
		return exitRejected
	}
	return exitOK
}

func check(ctx context.Context, path string, facilities []string, policy core.Policy) (report, error) {
	if len(facilities) == 0 {
		return report{}, core.ErrNoFacilities
	}

	f, err := os.Open(path)
	if err != nil {
		return report{}, err
	}
	defer f.Close()

	rows, err := spreadsheet.NewReader().ReadRows(ctx, filepath.Base(path), f)
	if err != nil {
		return report{}, err
	}
	if len(rows) == 0 {
		return report{}, errors.New("empty file")
	}

	header := core.MakeHeaderIndex(rows[0])
	if err := core.ValidateHeader(header); err != nil {
		return report{}, err
	}

	res := core.ImportRoster(rows[1:], header, facilities, nil, policy)
	return report{
		File:       filepath.Base(path),
		TotalRows:  res.TotalRows,
		Accepted:   res.TotalRows - len(res.Rejections),
		Records:    len(res.Accepted),
		Rejections: res.Rejections,
	}, nil
}

func printReport(w io.Writer, rep report) {
	for _, r := range rep.Rejections {
		fmt.Fprintln(w, r.String())
	}
	fmt.Fprintf(w, "%s: %d filas, %d aceptadas, %d rechazadas\n",
		rep.File, rep.TotalRows, rep.Accepted, len(rep.Rejections))
}

func splitNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
