package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/bytedance/sonic"
	"github.com/xgzlucario/indexalloc"
	"github.com/xgzlucario/indexalloc/internal/percentile"
	"github.com/xgzlucario/indexalloc/soa"
)

type config struct {
	Entries   int     `json:"entries"`
	Rounds    int     `json:"rounds"`
	MaxCount  int     `json:"max_count"`
	FreeRatio float64 `json:"free_ratio"`
	Seed      int64   `json:"seed"`
}

type report struct {
	Config     config             `json:"config"`
	Insert     percentile.Summary `json:"insert"`
	Defragment percentile.Summary `json:"defragment"`
	Stats      indexalloc.Stats   `json:"stats"`
	Checked    int                `json:"checked"`
	Cost       time.Duration      `json:"cost"`
}

type row struct {
	id    uint64
	value float64
}

func encode(rows *soa.Slice[row]) func(start, count int) []byte {
	return func(start, count int) []byte {
		buf := make([]byte, 0, count*16)
		for _, r := range rows.Data[start : start+count] {
			buf = binary.LittleEndian.AppendUint64(buf, r.id)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(r.value))
		}
		return buf
	}
}

func main() {
	var cfg config
	var asJSON bool
	flag.IntVar(&cfg.Entries, "entries", 100*10000, "number of live blocks to keep")
	flag.IntVar(&cfg.Rounds, "rounds", 20, "number of free/refill rounds")
	flag.IntVar(&cfg.MaxCount, "max-count", 8, "max rows of a single block")
	flag.Float64Var(&cfg.FreeRatio, "free-ratio", 0.3, "share of blocks freed every round")
	flag.Int64Var(&cfg.Seed, "seed", 1, "random seed")
	flag.BoolVar(&asJSON, "json", false, "print the report as json")
	flag.Parse()

	if cfg.Entries <= 0 || cfg.MaxCount <= 0 || cfg.FreeRatio < 0 || cfg.FreeRatio > 1 {
		fmt.Fprintln(os.Stderr, "invalid flags")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	faker := gofakeit.New(cfg.Seed)

	rows := soa.NewSlice[row](0)
	options := indexalloc.DefaultOptions
	options.Capacity = cfg.Entries * cfg.MaxCount / 2
	options.Logger = logger
	table := soa.New(options, rows)

	insert := percentile.New(0)
	defrag := percentile.New(0)
	handles := make([]soa.Handle, 0, cfg.Entries)
	sums := map[soa.Handle]uint64{}

	fill := func() {
		for len(handles) < cfg.Entries {
			var h soa.Handle
			var err error
			insert.Time(func() {
				h, err = table.Insert(faker.Number(1, cfg.MaxCount))
			})
			if err != nil {
				logger.Error("insert failed", "error", err)
				os.Exit(1)
			}
			table.Update(h, func(start, count int) {
				for i := start; i < start+count; i++ {
					rows.Data[i] = row{id: uint64(h), value: faker.Float64Range(0, 1e6)}
				}
			})
			handles = append(handles, h)
		}
	}

	start := time.Now()
	fill()
	for round := 0; round < cfg.Rounds; round++ {
		faker.ShuffleAnySlice(handles)
		n := int(float64(len(handles)) * cfg.FreeRatio)
		for _, h := range handles[:n] {
			table.Remove(h)
			delete(sums, h)
		}
		handles = handles[n:]

		// digest a sample before compaction, verify it after.
		for _, h := range handles[:min(len(handles), 1000)] {
			sums[h], _ = table.Checksum(h, encode(rows))
		}
		defrag.Time(table.Defragment)
		for h, want := range sums {
			if got, _ := table.Checksum(h, encode(rows)); got != want {
				logger.Error("rows corrupted by defragment", "handle", h)
				os.Exit(1)
			}
		}
		logger.Info("round done", "round", round, "rows", table.Len(), "live", table.Live())
		fill()
	}

	rep := report{
		Config:     cfg,
		Insert:     insert.Summary(),
		Defragment: defrag.Summary(),
		Stats:      table.Stats(),
		Checked:    len(sums),
		Cost:       time.Since(start),
	}

	if asJSON {
		buf, err := sonic.Marshal(rep)
		if err != nil {
			logger.Error("marshal report", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(buf))
		return
	}

	fmt.Println("entries:", cfg.Entries)
	fmt.Println("rounds:", cfg.Rounds)
	fmt.Println("insert:", insert)
	fmt.Println("defragment:", defrag)
	fmt.Printf("moves: %d moved rows: %d\n", rep.Stats.Moves, rep.Stats.MovedIndices)
	fmt.Printf("unused: %.2f%%\n", rep.Stats.UnusedRate())
	fmt.Println("checked:", rep.Checked)
	fmt.Println("cost:", rep.Cost)
}
