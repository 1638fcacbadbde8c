package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	formdoc "github.com/goliatone/go-formdoc"
	openaiagent "github.com/goliatone/go-formdoc/pkg/agents/openai"
	"github.com/goliatone/go-formdoc/pkg/agents/scripted"
	"github.com/goliatone/go-formdoc/pkg/agents/tui"
	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/harness/sessionstore"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

const usage = `usage: formdoc-cli <command> [flags] <document>

commands:
  show      print the canonical text of a document
  check     report outstanding issues (exit 1 when incomplete)
  apply     apply a patch file to a document
  run       drive an agent until the document completes or stalls
  export    render a view of the document (values, schema, report, report-html)
  replay    verify a transcript against the original document (exit 1 on divergence)
  sessions  list stored sessions
`

func main() {
	log.SetFlags(0)
	log.SetPrefix("formdoc-cli: ")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "show":
		cmdShow(os.Args[2:])
	case "check":
		cmdCheck(os.Args[2:])
	case "apply":
		cmdApply(os.Args[2:])
	case "run":
		cmdRun(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "replay":
		cmdReplay(os.Args[2:])
	case "sessions":
		cmdSessions(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func cmdShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	hashOnly := fs.Bool("hash", false, "print the content hash instead of the text")
	output := fs.String("output", "", "output file (stdout if empty)")
	fs.Parse(args)

	doc := loadDocument(fs.Arg(0))

	if *hashOnly {
		hash, err := formdoc.Hash(doc)
		if err != nil {
			log.Fatalf("hash: %v", err)
		}
		fmt.Println(hash)
		return
	}

	data, err := formdoc.Serialize(doc)
	if err != nil {
		log.Fatalf("serialize: %v", err)
	}
	writeOutput(*output, data)
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "emit the inspection result as JSON")
	fs.Parse(args)

	doc := loadDocument(fs.Arg(0))
	result := formdoc.Inspect(doc)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode: %v", err)
		}
	} else {
		for _, issue := range result.Issues {
			fmt.Printf("%-12s %-22s %s: %s\n", issue.Severity, issue.Reason, issue.Ref, issue.Message)
		}
		if result.Complete {
			fmt.Println("complete")
		} else {
			fmt.Println("incomplete")
		}
	}

	if !result.Complete {
		os.Exit(1)
	}
}

func cmdApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	patchPath := fs.String("patches", "", "patch file, JSON or YAML (required)")
	output := fs.String("output", "", "output file (stdout if empty)")
	fs.Parse(args)

	if *patchPath == "" {
		log.Fatalf("apply: -patches is required")
	}

	doc := loadDocument(fs.Arg(0))

	raw, err := os.ReadFile(*patchPath)
	if err != nil {
		log.Fatalf("read patches: %v", err)
	}
	patches, err := patch.Decode(raw)
	if err != nil {
		log.Fatalf("decode patches: %v", err)
	}

	result := formdoc.Apply(doc, patches)
	for _, rej := range result.Rejections {
		fmt.Fprintln(os.Stderr, rej.Error())
	}

	data, err := formdoc.Serialize(doc)
	if err != nil {
		log.Fatalf("serialize: %v", err)
	}
	writeOutput(*output, data)

	if len(result.Rejections) > 0 {
		os.Exit(1)
	}
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	agentName := fs.String("agent", "tui", "agent to drive: tui, openai, or scripted")
	model := fs.String("model", openaiagent.DefaultModel, "model for the openai agent")
	baseURL := fs.String("base-url", "", "API base URL override for the openai agent")
	script := fs.String("script", "", "transcript file replayed as patch batches by the scripted agent")
	maxTurns := fs.Int("max-turns", 0, "override the maximum number of turns")
	maxIssues := fs.Int("max-issues", 0, "override the issues shown per turn")
	maxPatches := fs.Int("max-patches", 0, "override the patch budget per turn")
	storePath := fs.String("store", "", "SQLite session store path (optional)")
	transcriptPath := fs.String("transcript", "", "write the transcript JSON to this file")
	output := fs.String("output", "", "output file for the final document (stdout if empty)")
	fs.Parse(args)

	doc := loadDocument(fs.Arg(0))

	cfg := harness.DefaultConfig()
	if *maxTurns > 0 {
		cfg.MaxTurns = *maxTurns
	}
	if *maxIssues > 0 {
		cfg.MaxIssuesPerTurn = *maxIssues
	}
	if *maxPatches > 0 {
		cfg.MaxPatchesPerTurn = *maxPatches
	}

	var agent harness.Agent
	switch *agentName {
	case "tui":
		a, err := tui.New(doc)
		if err != nil {
			log.Fatalf("tui agent: %v", err)
		}
		agent = a
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Fatalf("openai agent: OPENAI_API_KEY is not set")
		}
		opts := []openaiagent.Option{openaiagent.WithModel(*model)}
		if *baseURL != "" {
			opts = append(opts, openaiagent.WithBaseURL(*baseURL))
		}
		a, err := openaiagent.New(apiKey, opts...)
		if err != nil {
			log.Fatalf("openai agent: %v", err)
		}
		agent = a
	case "scripted":
		if *script == "" {
			log.Fatalf("scripted agent: -script is required")
		}
		tr := loadTranscript(*script)
		agent = scripted.FromTranscript(tr)
	default:
		log.Fatalf("unknown agent %q", *agentName)
	}

	transcript, err := formdoc.Run(context.Background(), doc, agent, formdoc.WithConfig(cfg))
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	if *storePath != "" {
		store, err := sessionstore.New(*storePath)
		if err != nil {
			log.Fatalf("session store: %v", err)
		}
		defer store.Close()
		if err := store.Save(transcript); err != nil {
			log.Fatalf("save session: %v", err)
		}
	}

	if *transcriptPath != "" {
		payload, err := json.MarshalIndent(transcript, "", "  ")
		if err != nil {
			log.Fatalf("marshal transcript: %v", err)
		}
		if err := os.WriteFile(*transcriptPath, payload, 0o644); err != nil {
			log.Fatalf("write transcript: %v", err)
		}
	}

	data, err := formdoc.Serialize(doc)
	if err != nil {
		log.Fatalf("serialize: %v", err)
	}
	writeOutput(*output, data)

	fmt.Fprintf(os.Stderr, "session %s finished %s after %d turns\n",
		transcript.SessionID, transcript.Final, len(transcript.Turns))
	if transcript.Final == harness.StateStalled {
		os.Exit(2)
	}
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "values", "view to render: values, schema, report, report-html")
	output := fs.String("output", "", "output file (stdout if empty)")
	fs.Parse(args)

	doc := loadDocument(fs.Arg(0))

	registry, err := formdoc.Exporters()
	if err != nil {
		log.Fatalf("exporters: %v", err)
	}
	exporter, err := registry.Get(*format)
	if err != nil {
		log.Fatalf("export: unknown format %q (have %s)", *format, strings.Join(registry.List(), ", "))
	}

	data, err := exporter.Export(doc)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	writeOutput(*output, data)
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	transcriptPath := fs.String("transcript", "", "transcript JSON file (required)")
	storePath := fs.String("store", "", "load the transcript from this session store instead")
	sessionID := fs.String("session", "", "session id to load from the store")
	fs.Parse(args)

	original, err := os.ReadFile(documentArg(fs))
	if err != nil {
		log.Fatalf("read document: %v", err)
	}

	var transcript *harness.Transcript
	switch {
	case *storePath != "":
		if *sessionID == "" {
			log.Fatalf("replay: -session is required with -store")
		}
		store, err := sessionstore.New(*storePath)
		if err != nil {
			log.Fatalf("session store: %v", err)
		}
		defer store.Close()
		transcript, err = store.Load(*sessionID)
		if err != nil {
			log.Fatalf("load session: %v", err)
		}
	case *transcriptPath != "":
		transcript = loadTranscript(*transcriptPath)
	default:
		log.Fatalf("replay: -transcript or -store is required")
	}

	if err := formdoc.Replay(original, transcript); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("transcript verified")
}

func cmdSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	storePath := fs.String("store", "", "SQLite session store path (required)")
	formID := fs.String("form", "", "filter by form id")
	limit := fs.Int("limit", 20, "maximum sessions listed")
	fs.Parse(args)

	if *storePath == "" {
		log.Fatalf("sessions: -store is required")
	}

	store, err := sessionstore.New(*storePath)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer store.Close()

	summaries, err := store.List(*formID, *limit)
	if err != nil {
		log.Fatalf("list sessions: %v", err)
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-10s %-8s %2d turns  %s\n",
			s.SessionID, s.FormID, s.Final, s.Turns, s.Started.Format("2006-01-02 15:04:05"))
	}
}

func loadDocument(path string) *formdoc.Document {
	if path == "" {
		log.Fatalf("document path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read document: %v", err)
	}
	doc, err := formdoc.Parse(data)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}
	return doc
}

func loadTranscript(path string) *harness.Transcript {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read transcript: %v", err)
	}
	var tr harness.Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		log.Fatalf("decode transcript: %v", err)
	}
	return &tr
}

func documentArg(fs *flag.FlagSet) string {
	path := fs.Arg(0)
	if path == "" {
		log.Fatalf("document path is required")
	}
	return path
}

func writeOutput(path string, data []byte) {
	if path == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write output: %v", err)
	}
}
