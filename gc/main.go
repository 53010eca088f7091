package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/xgzlucario/indexalloc"
	"github.com/xgzlucario/indexalloc/soa"
)

const valueChunk = 64

var previousPause time.Duration

func gcPause() time.Duration {
	runtime.GC()
	var stats debug.GCStats
	debug.ReadGCStats(&stats)
	pause := stats.PauseTotal - previousPause
	previousPause = stats.PauseTotal
	return pause
}

func main() {
	store := ""
	entries := 0
	repeat := 0
	valueSize := 0
	flag.StringVar(&store, "store", "soa", "store to bench.")
	flag.IntVar(&entries, "entries", 2000000, "number of entries to test")
	flag.IntVar(&repeat, "repeat", 20, "number of repetitions")
	flag.IntVar(&valueSize, "value-size", 100, "size of single entry value in bytes")
	flag.Parse()

	debug.SetGCPercent(10)
	fmt.Println("Store:             ", store)
	fmt.Println("Number of entries: ", entries)
	fmt.Println("Number of repeats: ", repeat)
	fmt.Println("Value size:        ", valueSize)

	var benchFunc func(entries, valueSize int)

	switch store {
	case "soa":
		benchFunc = soaTable
	case "bigcache":
		benchFunc = bigCache
	case "stdmap":
		benchFunc = stdMap
	default:
		fmt.Printf("unknown store: %s", store)
		os.Exit(1)
	}

	benchFunc(entries, valueSize)
	fmt.Println("GC pause for startup: ", gcPause())
	for i := 0; i < repeat; i++ {
		benchFunc(entries, valueSize)
	}

	fmt.Printf("GC pause for %s: %s\n", store, gcPause())
}

func stdMap(entries, valueSize int) {
	m := make(map[int][]byte)
	for i := 0; i < entries; i++ {
		m[i] = generateValue(i, valueSize)
	}
	for i := 0; i < entries; i += 2 {
		delete(m, i)
	}
}

// soaTable stores every value as one row of a pointer-free column.
func soaTable(entries, valueSize int) {
	values := soa.NewSlice[[valueChunk]byte](0)
	t := soa.New(indexalloc.DefaultOptions, values)
	rows := (valueSize + valueChunk - 1) / valueChunk

	handles := make([]soa.Handle, entries)
	for i := 0; i < entries; i++ {
		h, err := t.Insert(rows)
		if err != nil {
			panic(err)
		}
		val := generateValue(i, valueSize)
		t.Update(h, func(start, count int) {
			for k := 0; k < count; k++ {
				copy(values.Data[start+k][:], val[k*valueChunk:])
			}
		})
		handles[i] = h
	}
	for i := 0; i < entries; i += 2 {
		t.Remove(handles[i])
	}
	t.Compact()
}

func bigCache(entries, valueSize int) {
	config := bigcache.Config{
		Shards:             256,
		LifeWindow:         100 * time.Minute,
		MaxEntriesInWindow: entries,
		MaxEntrySize:       valueSize,
		Verbose:            true,
	}

	cache, _ := bigcache.New(context.Background(), config)
	for i := 0; i < entries; i++ {
		cache.Set(fmt.Sprintf("key-%010d", i), generateValue(i, valueSize))
	}
	for i := 0; i < entries; i += 2 {
		cache.Delete(fmt.Sprintf("key-%010d", i))
	}
}

func generateValue(index int, valSize int) []byte {
	fixedNumber := []byte(fmt.Sprintf("%010d", index))
	if valSize <= len(fixedNumber) {
		return fixedNumber[:valSize]
	}
	return append(make([]byte, valSize-len(fixedNumber)), fixedNumber...)
}
