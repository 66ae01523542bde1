package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"deltanet/pkg/auth"
	"deltanet/pkg/db"
	"deltanet/pkg/node"
	"deltanet/pkg/store"
	"deltanet/pkg/version"
)

func main() {
	_ = godotenv.Load()

	defaultID := os.Getenv("NODE_NAME")
	if defaultID == "" {
		defaultID = "heritage-node-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	defaultURI := os.Getenv("DELTANET_URI")
	if defaultURI == "" {
		defaultURI = "ws://127.0.0.1:8080/api/v1/ws"
	}

	nodeID := flag.String("id", defaultID, "node id (overrides NODE_NAME env)")
	uri := flag.String("kernel", defaultURI, "kernel websocket URI (env DELTANET_URI)")
	domain := flag.String("domain", "heritage.culture", "declared domain tag")
	storeType := flag.String("store", "memory", "record store backend: memory|mysql (MYSQL_* env)")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "redis address for the artifact cache (optional)")
	journalPath := flag.String("journal", os.Getenv("JOURNAL_PATH"), "sqlite journal path (optional)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("heritage-node version=%s", version.Build)
		return
	}

	var recordStore store.RecordStore
	switch *storeType {
	case "mysql":
		gormDB, err := db.Init()
		if err != nil {
			log.Fatalf("record store init failed: %v", err)
		}
		recordStore = store.NewGormStore(gormDB)
	case "memory":
		log.Printf("using in-memory record store; data will not survive a restart")
		recordStore = store.NewMemoryStore()
	default:
		log.Fatalf("unsupported store type: %s", *storeType)
	}

	opts := []node.Option{
		node.WithDomain(*domain),
		node.WithSigner(auth.NewAssetSignerFromEnv()),
	}
	if *redisAddr != "" {
		cache, err := node.NewResponseCache(*redisAddr)
		if err != nil {
			log.Fatalf("redis cache init failed: %v", err)
		}
		defer cache.Close()
		opts = append(opts, node.WithCache(cache))
	}
	if *journalPath != "" {
		journal := node.OpenJournal(*journalPath)
		defer journal.Close()
		opts = append(opts, node.WithJournal(journal))
	}

	agent := node.New(*nodeID, recordStore, opts...)
	sup := &node.Supervisor{URI: *uri, Agent: agent}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("heritage-node version=%s id=%s kernel=%s", version.Build, *nodeID, *uri)
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("supervisor error: %v", err)
	}
	log.Printf("heritage node shutting down")
}
