// Seed program: formats a fresh index file and bulk-inserts keys.
// Run: go run ./cmd/btseed -file /tmp/demo.idx -count 500
// Then inspect: go run ./cmd/btinspect -file /tmp/demo.idx -mode sorted
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"TreeDB/btree"
	"TreeDB/buffercache"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		file      = flag.String("file", "tree.idx", "index file to create")
		blocks    = flag.Uint("blocks", 1024, "number of blocks to format")
		blocksize = flag.Uint("blocksize", 4096, "block size in bytes")
		keysize   = flag.Uint("keysize", 8, "key width in bytes")
		valuesize = flag.Uint("valuesize", 8, "value width in bytes")
		count     = flag.Uint("count", 100, "keys to insert")
		seed      = flag.Int64("seed", 1, "insertion order shuffle seed")
		snapshot  = flag.String("snapshot", "", "also write a compressed snapshot here")
		algo      = flag.String("algo", "snappy", "snapshot compression: snappy, lz4 or none")
	)
	flag.Parse()

	if _, err := os.Stat(*file); err == nil {
		log.Fatalf("%s already exists, refusing to reformat", *file)
	}

	cache, err := buffercache.NewDiskCache(*file, 0644, &buffercache.Options{
		BlockSize:  uint32(*blocksize),
		NumBlocks:  uint32(*blocks),
		CacheBytes: 4 << 20,
	})
	if err != nil {
		log.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	tree := btree.New(uint32(*keysize), uint32(*valuesize), cache, true)
	if err := tree.Attach(0, true); err != nil {
		log.Fatalf("attach: %v", err)
	}

	keys := make([]uint, *count)
	for i := range keys {
		keys[i] = uint(i)
	}
	rng := rand.New(rand.NewSource(*seed))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	inserted := 0
	for _, k := range keys {
		key := []byte(fmt.Sprintf("k%0*d", int(*keysize-1), k))
		val := []byte(fmt.Sprintf("v%0*d", int(*valuesize-1), k))
		if err := tree.Insert(key, val); err != nil {
			log.Fatalf("insert %s: %v", key, err)
		}
		inserted++
	}

	if err := tree.SanityCheck(); err != nil {
		log.Fatalf("sanity check: %v", err)
	}
	if _, err := tree.Detach(); err != nil {
		log.Fatalf("detach: %v", err)
	}
	log.WithFields(log.Fields{"file": *file, "keys": inserted}).Info("seeded index")

	if *snapshot != "" {
		out, err := os.Create(*snapshot)
		if err != nil {
			log.Fatalf("create snapshot: %v", err)
		}
		defer out.Close()
		algorithm := buffercache.CompSnappy
		switch *algo {
		case "lz4":
			algorithm = buffercache.CompLz4
		case "none":
			algorithm = buffercache.CompNone
		}
		if err := buffercache.Snapshot(cache, out, algorithm); err != nil {
			log.Fatalf("snapshot: %v", err)
		}
		log.WithField("file", *snapshot).Info("wrote snapshot")
	}
}
