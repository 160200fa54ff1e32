// Command crucible drives the curation pipeline from the shell: analyze a
// tabular file into a schema, validate it for data-quality problems,
// generate fix suggestions, record accept/reject/modify decisions, apply
// the accepted ones, and export the result in a different format.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cruciblehq/crucible/internal/column"
	"github.com/cruciblehq/crucible/internal/config"
	"github.com/cruciblehq/crucible/internal/curation"
	"github.com/cruciblehq/crucible/internal/pipeline"
	"github.com/cruciblehq/crucible/internal/source"
	"github.com/cruciblehq/crucible/internal/transform"
)

const (
	version = "1.0.0"
	usage   = `Crucible CLI - curate tabular datasets

Usage:
  crucible <command> [options]

Commands:
  analyze     Infer a schema from an input file and start a curation layer
  validate    Run the validator set and record observations
  suggest     Generate fix suggestions for recorded observations
  decide      Accept, reject, modify, or reset a suggestion's decision
  apply       Apply accepted/modified decisions and write the curated table
  export      Re-encode a table in a different output format
  version     Print version information

Run 'crucible <command> --help' for more information on a command.
`
)

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "suggest":
		runSuggest(os.Args[2:])
	case "decide":
		runDecide(os.Args[2:])
	case "apply":
		runApply(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("crucible version %s\n", version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func loadTable(inputPath, sheet string) (*column.Table, curation.SourceFormat, []byte, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("reading %s: %w", inputPath, err)
	}
	format := source.DetectFormat(inputPath)
	var table *column.Table
	if format == curation.FormatXLSX {
		table, _, err = source.ReadXLSX(bytesReader(raw), sheet)
	} else if format == curation.FormatParquet {
		table, _, err = source.ReadParquetFile(inputPath)
	} else {
		table, _, err = source.Read(bytesReader(raw), format)
	}
	if err != nil {
		return nil, "", nil, err
	}
	return table, format, raw, nil
}

func loadContext(path string) curation.CurationContext {
	var ctx curation.CurationContext
	if path == "" {
		return ctx
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fatalf("Error reading context file: %v", err)
	}
	if err := json.Unmarshal(raw, &ctx); err != nil {
		fatalf("Error parsing context file: %v", err)
	}
	return ctx
}

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	input := fs.String("input", "", "Input file path (required)")
	layerPath := fs.String("layer", "crucible.layer.json", "Output layer file path")
	contextPath := fs.String("context", "", "Curation context JSON file")
	sheet := fs.String("sheet", "", "Sheet name (for XLSX files)")
	skipValidate := fs.Bool("schema-only", false, "Stop after schema inference; skip validate/suggest")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *input == "" {
		fatalf("Error: --input is required")
	}

	table, format, raw, err := loadTable(*input, *sheet)
	if err != nil {
		fatalf("Error reading input: %v", err)
	}

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		fatalf("Error in configuration: %v", err)
	}
	pl := pipeline.New(cfg)

	curCtx := loadContext(*contextPath)
	now := time.Now()
	meta := curation.SourceMetadata{
		File:        *input,
		Hash:        curation.HashContent(raw),
		SizeBytes:   int64(len(raw)),
		Format:      format,
		RowCount:    table.RowCount(),
		ColumnCount: table.ColumnCount(),
		AnalyzedAt:  now,
	}

	ctx := context.Background()
	var layer *curation.Layer
	if *skipValidate {
		schema := pl.Analyze(ctx, table, curCtx)
		layer = curation.New(meta, curCtx, schema, now)
	} else {
		layer, err = pl.BuildLayer(ctx, table, meta, curCtx, now)
		if err != nil {
			fatalf("Error building layer: %v", err)
		}
	}

	if err := layer.Save(*layerPath); err != nil {
		fatalf("Error saving layer: %v", err)
	}
	doc := layer.Document()
	fmt.Fprintf(os.Stderr, "Analyzed %d columns, %d rows -> %s\n", doc.Summary.TotalColumns, doc.Source.RowCount, *layerPath)
	if !*skipValidate {
		fmt.Fprintf(os.Stderr, "%d observations, %d suggestions, quality score %.2f\n",
			doc.Summary.TotalObservations, doc.Summary.TotalSuggestions, doc.Summary.DataQualityScore)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	layerPath := fs.String("layer", "crucible.layer.json", "Layer file path")
	sheet := fs.String("sheet", "", "Sheet name (for XLSX files)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	layer, err := curation.Load(*layerPath)
	if err != nil {
		fatalf("Error loading layer: %v", err)
	}
	doc := layer.Document()

	table, _, raw, err := loadTable(doc.Source.File, *sheet)
	if err != nil {
		fatalf("Error reading source file: %v", err)
	}
	if curation.HashContent(raw) != doc.Source.Hash {
		layer.MarkStale(true)
	}

	cfg := config.LoadConfig()
	pl := pipeline.New(cfg)
	observations, err := pl.Validate(context.Background(), &doc.Schema, table)
	if err != nil {
		fatalf("Error validating: %v", err)
	}
	layer.SetObservations(observations)

	if err := layer.Save(*layerPath); err != nil {
		fatalf("Error saving layer: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%d observations recorded -> %s\n", len(observations), *layerPath)
}

func runSuggest(args []string) {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	layerPath := fs.String("layer", "crucible.layer.json", "Layer file path")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	layer, err := curation.Load(*layerPath)
	if err != nil {
		fatalf("Error loading layer: %v", err)
	}
	doc := layer.Document()

	cfg := config.LoadConfig()
	pl := pipeline.New(cfg)
	suggestions := pl.Suggest(context.Background(), &doc.Schema, doc.Observations)
	if err := layer.SetSuggestions(suggestions); err != nil {
		fatalf("Error recording suggestions: %v", err)
	}

	if err := layer.Save(*layerPath); err != nil {
		fatalf("Error saving layer: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%d suggestions recorded -> %s\n", len(suggestions), *layerPath)
}

func runDecide(args []string) {
	fs := flag.NewFlagSet("decide", flag.ExitOnError)
	layerPath := fs.String("layer", "crucible.layer.json", "Layer file path")
	action := fs.String("action", "", "accept|reject|modify|reset (required)")
	suggestionID := fs.String("suggestion", "", "Suggestion id (required for accept)")
	decisionID := fs.String("decision", "", "Decision id (required for reject/modify/reset)")
	actor := fs.String("actor", "cli", "Actor recorded on the decision")
	notes := fs.String("notes", "", "Freeform notes")
	paramsJSON := fs.String("params", "", "JSON object of modification parameters (for modify)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	layer, err := curation.Load(*layerPath)
	if err != nil {
		fatalf("Error loading layer: %v", err)
	}

	var decision curation.Decision
	switch *action {
	case "accept":
		decision, err = layer.Accept(*suggestionID, *actor, *notes)
	case "reject":
		decision, err = layer.Reject(*decisionID, *actor, *notes)
	case "modify":
		var params map[string]any
		if *paramsJSON != "" {
			if jsonErr := json.Unmarshal([]byte(*paramsJSON), &params); jsonErr != nil {
				fatalf("Error parsing --params: %v", jsonErr)
			}
		}
		decision, err = layer.Modify(*decisionID, *actor, params, *notes)
	case "reset":
		decision, err = layer.Reset(*decisionID, *actor)
	default:
		fatalf("Error: --action must be one of accept|reject|modify|reset")
	}
	if err != nil {
		fatalf("Error recording decision: %v", err)
	}

	if err := layer.Save(*layerPath); err != nil {
		fatalf("Error saving layer: %v", err)
	}
	fmt.Fprintf(os.Stderr, "decision %s -> %s\n", decision.ID, decision.Status)
}

func runApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	layerPath := fs.String("layer", "crucible.layer.json", "Layer file path")
	output := fs.String("output", "", "Curated output file path (required)")
	auditPath := fs.String("audit", "", "Audit log output path (default: <output>.audit.json)")
	sheet := fs.String("sheet", "", "Sheet name (for XLSX files)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *output == "" {
		fatalf("Error: --output is required")
	}

	layer, err := curation.Load(*layerPath)
	if err != nil {
		fatalf("Error loading layer: %v", err)
	}
	doc := layer.Document()

	table, _, raw, err := loadTable(doc.Source.File, *sheet)
	if err != nil {
		fatalf("Error reading source file: %v", err)
	}
	if curation.HashContent(raw) != doc.Source.Hash {
		fatalf("Error: source file has changed since analysis; re-run analyze")
	}

	result, err := transform.Apply(&doc.Schema, table, doc, time.Now())
	if err != nil {
		fatalf("Error applying decisions: %v", err)
	}

	outFormat := source.DetectFormat(*output)
	if outFormat == curation.FormatParquet {
		if err := source.WriteParquetFile(*output, result.Table); err != nil {
			fatalf("Error writing output: %v", err)
		}
	} else {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("Error creating output file: %v", err)
		}
		defer f.Close()
		if err := source.Write(f, result.Table, outFormat); err != nil {
			fatalf("Error writing output: %v", err)
		}
	}

	if *auditPath == "" {
		*auditPath = *output + ".audit.json"
	}
	auditRaw, err := json.MarshalIndent(result.Audit, "", "  ")
	if err != nil {
		fatalf("Error encoding audit log: %v", err)
	}
	if err := os.WriteFile(*auditPath, auditRaw, 0o644); err != nil {
		fatalf("Error writing audit log: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Applied %d decisions -> %s (audit: %s)\n", len(result.Audit), *output, *auditPath)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	input := fs.String("input", "", "Input table file (required)")
	output := fs.String("output", "", "Output file path (required)")
	sheet := fs.String("sheet", "", "Sheet name (for XLSX input)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *input == "" || *output == "" {
		fatalf("Error: --input and --output are required")
	}

	table, _, _, err := loadTable(*input, *sheet)
	if err != nil {
		fatalf("Error reading input: %v", err)
	}

	outFormat := source.DetectFormat(*output)
	if outFormat == curation.FormatParquet {
		if err := source.WriteParquetFile(*output, table); err != nil {
			fatalf("Error writing output: %v", err)
		}
	} else {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("Error creating output file: %v", err)
		}
		defer f.Close()
		if err := source.Write(f, table, outFormat); err != nil {
			fatalf("Error writing output: %v", err)
		}
	}
	fmt.Fprintf(os.Stderr, "Exported %s -> %s\n", filepath.Base(*input), *output)
}
