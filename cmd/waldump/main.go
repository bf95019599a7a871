package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"lsmcore/pkg/memtable"
	"lsmcore/pkg/wal"
)

// waldump prints the records of a write-ahead log in file order and the
// state they reconstruct, without opening the database.
func main() {
	path := flag.String("wal", "./data/wal/"+wal.FileName, "path to the WAL file")
	quiet := flag.Bool("q", false, "print only the final state")
	flag.Parse()

	file, err := os.Open(*path)
	if err != nil {
		fmt.Printf("Failed to open WAL: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	mt := memtable.New()
	r := wal.NewReader(file)

	n := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, wal.ErrTruncated) {
			fmt.Printf("# partial record at offset %d ignored\n", r.Offset())
			break
		}
		if err != nil {
			fmt.Printf("# replay stopped: %v\n", err)
			break
		}

		n++
		if !*quiet {
			fmt.Printf("%6d %-6s %s %s\n", n, rec.Kind, strconv.Quote(string(rec.Key)), strconv.Quote(string(rec.Value)))
		}

		switch rec.Kind {
		case wal.KindPut:
			mt.Put(rec.Key, rec.Value)
		case wal.KindDelete:
			mt.Delete(rec.Key)
		}
	}

	fmt.Printf("# %d records, %d keys\n", n, mt.Len())
	for _, it := range mt.Snapshot() {
		if it.Tombstone {
			fmt.Printf("%s <tombstone>\n", strconv.Quote(string(it.Key)))
			continue
		}
		fmt.Printf("%s = %s\n", strconv.Quote(string(it.Key)), strconv.Quote(string(it.Value)))
	}
}
