package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	openmemory "github.com/openmemory/openmemory-go"
	"github.com/openmemory/openmemory-go/identity"
	"github.com/openmemory/openmemory-go/session"
)

const usageText = `usage: openmemory-cli [flags] <command> [args]

commands:
  health                  backend liveness and corpus counters
  list [limit [offset]]   list memories
  get <id>                fetch one memory
  add <content> [category [tag,tag,...]]
  search <query>          semantic search
  suggest <context>       contextual suggestions
  categories              list category names
  clusters                thematic clusters
  stats                   vector index statistics
  login                   acquire a delegated identity
  logout                  drop the identity and clear the persisted flag
  status                  session state and principal
`

func main() {
	var (
		network    = flag.String("network", "production", "target network: production or local")
		host       = flag.String("host", "", "backend host override")
		canisterID = flag.String("canister", "", "backend canister ID override")
		apiKey     = flag.String("api-key", "", "API key for mutating calls; OPENMEMORY_API_KEY env if empty")
		configDir  = flag.String("config-dir", "", "state directory; defaults to ~/.config/openmemory")
		timeout    = flag.Duration("timeout", 30*time.Second, "per-call timeout, 0 disables")
		limitFlag  = flag.Int("limit", 10, "result limit for list, search, and suggest")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	dir := *configDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("resolve home directory: %v", err)
		}
		dir = filepath.Join(home, ".config", "openmemory")
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("OPENMEMORY_API_KEY")
	}

	cfg := openmemory.DefaultConfig()
	cfg.Network = openmemory.Network(*network)
	cfg.Host = *host
	cfg.Auth.APIKey = key
	if key == "" {
		// Without a key, mutating calls carry the delegation credential.
		cfg.Auth.Scheme = openmemory.AuthSchemeDelegation
	}
	cfg.Call.Timeout = *timeout
	if *canisterID != "" {
		cfg.CanisterID = *canisterID
	}

	client, err := openmemory.New().
		WithConfig(cfg).
		WithStateStore(session.NewFileStore(filepath.Join(dir, "session"))).
		WithIdentityProvider(&identity.LocalProvider{Path: filepath.Join(dir, "identity.pem")}).
		Build()
	if err != nil {
		fatalf("build client: %v", err)
	}
	defer client.Close()

	ctx := openmemory.WithSource(context.Background(), "cli")
	if err := client.Initialize(ctx); err != nil {
		fatalf("initialize: %v", err)
	}

	// Pick up a persisted session so mutating commands work without an
	// explicit login each run.
	if _, err := client.Restore(ctx); err != nil {
		fatalf("restore session: %v", err)
	}

	if err := run(ctx, client, args, *limitFlag); err != nil {
		fatalf("%v", err)
	}
}

func run(ctx context.Context, client *openmemory.Client, args []string, limit int) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "health":
		status, err := client.GetHealth(ctx)
		if err != nil {
			return err
		}
		return printJSON(status)

	case "list":
		offset := 0
		if len(rest) > 0 {
			fmt.Sscanf(rest[0], "%d", &limit)
		}
		if len(rest) > 1 {
			fmt.Sscanf(rest[1], "%d", &offset)
		}
		memories, err := client.GetMemories(ctx, limit, offset)
		if err != nil {
			return err
		}
		return printJSON(memories)

	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: get <id>")
		}
		memory, err := client.GetMemory(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(memory)

	case "add":
		if len(rest) == 0 {
			return fmt.Errorf("usage: add <content> [category [tag,tag,...]]")
		}
		var category string
		var tags []string
		if len(rest) > 1 {
			category = rest[1]
		}
		if len(rest) > 2 {
			tags = strings.Split(rest[2], ",")
		}
		memory, err := client.AddMemory(ctx, rest[0], category, tags)
		if err != nil {
			return err
		}
		return printJSON(memory)

	case "search":
		if len(rest) != 1 {
			return fmt.Errorf("usage: search <query>")
		}
		resp, err := client.SearchMemories(ctx, openmemory.SearchRequest{Query: rest[0], Limit: limit})
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "suggest":
		if len(rest) != 1 {
			return fmt.Errorf("usage: suggest <context>")
		}
		resp, err := client.GetSuggestions(ctx, rest[0], limit)
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "categories":
		categories, err := client.GetCategories(ctx)
		if err != nil {
			return err
		}
		return printJSON(categories)

	case "clusters":
		resp, err := client.GetClusters(ctx, 0)
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "stats":
		stats, err := client.GetVectorStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "login":
		ok, err := client.Login(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("login declined")
		}
		fmt.Printf("logged in as %s\n", client.Principal())
		return nil

	case "logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "status":
		if client.IsAuthenticated(ctx) {
			fmt.Printf("authenticated as %s\n", client.Principal())
		} else {
			fmt.Println("not authenticated")
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
