package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/xgzlucario/indexalloc"
	"github.com/xgzlucario/indexalloc/soa"
)

type vec struct{ x, y float64 }

// emitter owns a burst of particles, stored as one block of rows.
type emitter struct {
	handle soa.Handle
	ttl    int
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	faker := gofakeit.New(0)

	pos := soa.NewSlice[vec](1024)
	vel := soa.NewSlice[vec](1024)
	options := indexalloc.DefaultOptions
	options.Logger = logger
	particles := soa.New(options, pos, vel)

	stop := particles.StartCompactor(context.Background(), 20*time.Millisecond)
	defer stop()

	var emitters []emitter
	for frame := 0; frame < 200; frame++ {
		// spawn
		if faker.Number(0, 2) == 0 {
			h, err := particles.Insert(faker.Number(4, 64))
			if err != nil {
				logger.Error("spawn failed", "error", err)
				return
			}
			particles.Update(h, func(start, count int) {
				for i := start; i < start+count; i++ {
					pos.Data[i] = vec{}
					vel.Data[i] = vec{faker.Float64Range(-1, 1), faker.Float64Range(-1, 1)}
				}
			})
			emitters = append(emitters, emitter{handle: h, ttl: faker.Number(10, 60)})
		}

		// step
		live := emitters[:0]
		for _, e := range emitters {
			if e.ttl--; e.ttl <= 0 {
				particles.Remove(e.handle)
				continue
			}
			particles.Update(e.handle, func(start, count int) {
				for i := start; i < start+count; i++ {
					pos.Data[i].x += vel.Data[i].x
					pos.Data[i].y += vel.Data[i].y
				}
			})
			live = append(live, e)
		}
		emitters = live

		time.Sleep(time.Millisecond)
	}

	stat := particles.Stats()
	fmt.Printf("emitters: %d rows: %d live rows: %d unused: %.2f%% defragments: %d moves: %d\n",
		particles.Live(), stat.NumIndices, stat.Allocated, stat.UnusedRate(), stat.Defragments, stat.Moves)
}
