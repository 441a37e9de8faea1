// Package main is the Seisan CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/chat"
	"github.com/hyperjump/seisan/internal/config"
	"github.com/hyperjump/seisan/internal/embedding"
	"github.com/hyperjump/seisan/internal/extract"
	"github.com/hyperjump/seisan/internal/ingest"
	"github.com/hyperjump/seisan/internal/llm"
	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/internal/retrieval"
	"github.com/hyperjump/seisan/internal/server"
	"github.com/hyperjump/seisan/internal/storage"
	"github.com/hyperjump/seisan/internal/vector"
	"github.com/hyperjump/seisan/internal/watcher"
	"github.com/hyperjump/seisan/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/seisan/config.yaml"

// defaultPolicyText is used when no policy document is configured or uploaded.
const defaultPolicyText = `Company Reimbursement Policy:
- Business meals up to $50 per person are reimbursable with receipts.
- Travel expenses (transport, lodging) require itemized receipts.
- Alcohol requires prior special approval.
- Personal expenses are not reimbursable.`

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "chat":
		runChat()
	case "status":
		runStatus()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("seisan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	policyText := loadPolicy(cfg, logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Ingest.WatchDirectories) > 0 {
		pipeline := components.Pipeline
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Ingest.WatchDirectories,
			extract.NewExtractor().SupportedExtensions(),
			func(path, employeeName string) {
				if _, err := pipeline.ProcessFile(context.Background(), path, employeeName, policyText); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Chat,
		components.Searcher,
		components.Store,
		&cfg.Server,
		policyText,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchCancel()
		watchSvc.Stop()
	}
	if cfg.Storage.VectorIndexPath != "" {
		if mem, ok := components.Store.(*vector.MemoryStore); ok {
			if err := mem.Save(cfg.Storage.VectorIndexPath); err != nil {
				logger.Warn("vector index save failed",
					zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// loadPolicy reads the configured policy document, falling back to the
// built-in default policy.
func loadPolicy(cfg *config.Config, logger *zap.Logger) string {
	if cfg.Ingest.PolicyPath == "" {
		return defaultPolicyText
	}
	text, err := extract.NewExtractor().Extract(cfg.Ingest.PolicyPath)
	if err != nil {
		logger.Warn("policy load failed, using built-in default",
			zap.String("path", cfg.Ingest.PolicyPath), zap.Error(err))
		return defaultPolicyText
	}
	return text
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	employee := fs.String("employee", "", "employee name (required)")
	policyPath := fs.String("policy", "", "optional policy document to upload")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 || *employee == "" {
		fmt.Println("Usage: seisan ingest --employee <name> [--policy <file>] <invoices.zip>")
		os.Exit(1)
	}
	zipPath := fs.Arg(0)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("employee_name", *employee); err != nil {
		fmt.Printf("Request build failed: %v\n", err)
		os.Exit(1)
	}
	if err := attachFile(mw, "invoices_zip", zipPath); err != nil {
		fmt.Printf("Failed to read %s: %v\n", zipPath, err)
		os.Exit(1)
	}
	if *policyPath != "" {
		if err := attachFile(mw, "policy_file", *policyPath); err != nil {
			fmt.Printf("Failed to read %s: %v\n", *policyPath, err)
			os.Exit(1)
		}
	}
	if err := mw.Close(); err != nil {
		fmt.Printf("Request build failed: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(*serverURL+"/api/v1/invoices", mw.FormDataContentType(), &body)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Ingest failed (%d): %s\n", resp.StatusCode, string(payload))
		os.Exit(1)
	}

	var out struct {
		ProcessedCount int                      `json:"processed_count"`
		Invoices       []models.ProcessedInvoice `json:"invoices"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Processed %d invoice(s) for %s\n", out.ProcessedCount, *employee)
	for _, inv := range out.Invoices {
		fmt.Printf("  %-24s %-22s %s\n", inv.FileName, inv.Status, inv.ReimbursableAmount)
	}
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// buildChatMessage joins all positional args with spaces so multi-word
// messages work with or without shell quoting.
func buildChatMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	sessionID := fs.String("session", "", "chat session id (default: server default session)")
	_ = fs.Parse(os.Args[2:])

	message := buildChatMessage(fs.Args())
	if message == "" {
		fmt.Println("Usage: seisan chat [flags] <message>")
		os.Exit(1)
	}

	payload, _ := json.Marshal(map[string]string{
		"message":    message,
		"session_id": *sessionID,
	})
	resp, err := http.Post(*serverURL+"/api/v1/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Chat failed (%d): %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var out models.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out.Response)
	if out.ContextUsed {
		fmt.Printf("\n(based on %d retrieved invoice(s), session %s)\n", out.RetrievedCount, out.SessionID)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/stats")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Status failed (%d): %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var stats vector.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
	case "text":
		fmt.Printf("collection:      %s\n", stats.Collection)
		fmt.Printf("documents:       %d\n", stats.DocumentCount)
		fmt.Printf("status:          %s\n", stats.Status)
		if stats.Error != "" {
			fmt.Printf("error:           %s\n", stats.Error)
		}
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	if !*yes {
		fmt.Print("This deletes every indexed invoice. Continue? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	resp, err := http.Post(*serverURL+"/api/v1/index/clear", "application/json", nil)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("Clear failed (%d): %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}
	fmt.Println("Index cleared.")
}

// Components holds initialized services.
type Components struct {
	Records  storage.RecordStore
	Embedder embedding.Embedder
	Store    vector.Store
	LLM      llm.Client
	Pipeline *ingest.Pipeline
	Searcher *retrieval.Searcher
	Sessions *chat.SessionStore
	Chat     *chat.Service
}

func (c *Components) Close() {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Records != nil {
		_ = c.Records.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	records, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record storage: %w", err)
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := vector.NewStore(context.Background(), vector.StoreConfig{
		Type:       cfg.Storage.VectorStore,
		Collection: cfg.Storage.Collection,
		Dimensions: cfg.Embedding.Dimensions,
		IndexPath:  cfg.Storage.VectorIndexPath,
		QdrantHost: cfg.Storage.QdrantHost,
		QdrantPort: cfg.Storage.QdrantPort,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	logger.Info("vector store initialized",
		zap.String("type", cfg.Storage.VectorStore),
		zap.Int("documents", store.Count()))

	var client llm.Client
	if cfg.LLM.Mock {
		client = &llm.MockClient{}
	} else {
		client, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
	}

	pipeline := ingest.NewPipeline(extract.NewExtractor(), client, embedder, store, records, logger)
	retriever := retrieval.NewRetriever(embedder, store, cfg.Chat.TopK, logger)
	searcher := retrieval.NewSearcher(embedder, store)
	sessions := chat.NewSessionStore(time.Duration(cfg.Chat.SessionTTL))
	chatSvc := chat.NewService(sessions, retriever, client, logger)

	return &Components{
		Records:  records,
		Embedder: embedder,
		Store:    store,
		LLM:      client,
		Pipeline: pipeline,
		Searcher: searcher,
		Sessions: sessions,
		Chat:     chatSvc,
	}, nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "rest", "":
		return embedding.NewRESTEmbedder(embedding.RESTConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			CacheSize:  cfg.Embedding.CacheSize,
		})
	case "onnx":
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
		return onnxEmbedder, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: rest, onnx, mock)", cfg.Embedding.Provider)
	}
}

func printUsage() {
	fmt.Println(`seisan - Invoice reimbursement analysis and RAG chat

Usage:
  seisan server [flags]                       Start the HTTP server
  seisan ingest [flags] <invoices.zip>        Analyze an invoice archive
  seisan chat [flags] <message>               Ask about processed invoices
  seisan status [flags]                       Show vector index status
  seisan clear [flags]                        Clear the vector index
  seisan version                              Show version
  seisan help                                 Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/seisan/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --server string    Server URL (default: http://localhost:8080)
  --employee string  Employee name (required)
  --policy string    Policy document to upload (optional)

Chat Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session id for multi-turn conversations

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  seisan server
  seisan ingest --employee "Alice Smith" invoices.zip
  seisan chat show declined invoices for alice
  seisan chat --session review "why was INV-042 declined?"
  seisan status --output json
  seisan clear --yes`)
}
