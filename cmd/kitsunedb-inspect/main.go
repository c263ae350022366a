// kitsunedb-inspect opens an index file described by a yaml config and
// prints the tree structure and the leaf chain. Intended for offline
// debugging of index files; do not run it against a file that is open for
// writing elsewhere.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kitsune-db/kitsunedb/core/index/bplustree"
	"github.com/kitsune-db/kitsunedb/core/storage/buffer"
	"github.com/kitsune-db/kitsunedb/core/storage/disk"
	"github.com/kitsune-db/kitsunedb/pkg/config"
	"github.com/kitsune-db/kitsunedb/pkg/logger"
	"github.com/kitsune-db/kitsunedb/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "kitsunedb.yaml", "path to the yaml configuration file")
	indexName := flag.String("index", "primary", "name of the index to inspect")
	scan := flag.Bool("scan", false, "also print every key in leaf-chain order")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	_, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Fatal("init telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(context.Background())

	dm, err := disk.NewManager(cfg.Storage.Path, cfg.Storage.PageSize, log)
	if err != nil {
		log.Fatal("open database file", zap.Error(err))
	}
	bpm := buffer.NewBufferPoolManager(cfg.Storage.PoolSize, cfg.Storage.ReplacerK, dm, log)
	defer bpm.Close()

	tree, err := bplustree.NewBPlusTree(*indexName, bpm, bplustree.BytesComparator(), bplustree.Config{
		KeySize:         cfg.Storage.KeySize,
		LeafMaxSize:     cfg.Storage.LeafMaxSize,
		InternalMaxSize: cfg.Storage.InternalMaxSize,
		Logger:          log,
	})
	if err != nil {
		log.Fatal("open index", zap.Error(err))
	}

	fmt.Printf("index %q root=%d\n", *indexName, tree.RootPageID())
	if err := tree.DumpTo(os.Stdout); err != nil {
		log.Fatal("dump tree", zap.Error(err))
	}

	if *scan {
		it, err := tree.Begin()
		if err != nil {
			log.Fatal("begin scan", zap.Error(err))
		}
		count := 0
		for !it.IsEnd() {
			fmt.Printf("%x -> (%d,%d)\n", it.Key(), it.Value().PageID, it.Value().Slot)
			count++
			if err := it.Next(); err != nil {
				log.Fatal("scan", zap.Error(err))
			}
		}
		fmt.Printf("%d entries\n", count)
	}
}
