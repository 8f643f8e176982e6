// Command smtbench exercises the smt package against a batch of random
// keys over an in-memory node store, printing insert and prove timings and
// whether the generated proof verifies against the resulting root. Adapted
// from the teacher's cmd/generate_test_data.go, which built fixed test
// vectors for a depth-4 tree the same way: construct a tree, insert random
// values, generate and verify proofs, and report what came out.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/chainkv/smt/smt"
)

func main() {
	count := flag.Int("n", 10000, "number of keys to insert")
	queries := flag.Int("q", 16, "number of proof queries to run after the insert")
	flag.Parse()

	cfg := smt.DefaultConfig()
	engine, err := smt.NewEngine(cfg)
	if err != nil {
		log.Fatalf("NewEngine: %v", err)
	}
	store := smt.NewMemoryNodeStore()

	pairs := make([]smt.KV, *count)
	for i := range pairs {
		key := make([]byte, cfg.KeyLength)
		if _, err := rand.Read(key); err != nil {
			log.Fatalf("generating key: %v", err)
		}
		value := make([]byte, 32)
		if _, err := rand.Read(value); err != nil {
			log.Fatalf("generating value: %v", err)
		}
		pairs[i] = smt.KV{Key: key, Value: value}
	}

	start := time.Now()
	root, err := engine.Update(store, engine.EmptyRoot(), pairs)
	if err != nil {
		log.Fatalf("Update: %v", err)
	}
	fmt.Printf("inserted %d keys in %s, root=%x, nodes=%d\n", *count, time.Since(start), root, store.Len())

	keys := make([][]byte, *queries)
	for i := range keys {
		keys[i] = pairs[i%len(pairs)].Key
	}
	start = time.Now()
	proof, err := engine.Prove(store, root, keys)
	if err != nil {
		log.Fatalf("Prove: %v", err)
	}
	fmt.Printf("proved %d keys in %s, %d siblings\n", *queries, time.Since(start), len(proof.Siblings))

	if !engine.Verify(root, keys, proof) {
		log.Fatalf("generated proof did not verify against its own root")
	}
	fmt.Println("proof verified ok")
}
