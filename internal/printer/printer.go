// Package printer renders a weekly plan in the submission format: one
// "truck; day; sequence; order" line per visit, closing depot included.
package printer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bjorn1004/route-finder/internal/arena"
	"github.com/bjorn1004/route-finder/internal/model"
	"github.com/bjorn1004/route-finder/internal/opt"
	"github.com/bjorn1004/route-finder/internal/schedule"
)

// Records lists the visits of sol in print order.
func Records(sol *schedule.Solution) []model.ScheduleEntry {
	return Entries(sol.Dataset(), sol.Trucks)
}

// Entries lists the visits of a week snapshot. The afternoon sequence
// continues where the morning ended; routes without stops print nothing.
func Entries(ds *model.Dataset, trucks [schedule.NumTrucks]schedule.Week) []model.ScheduleEntry {
	var out []model.ScheduleEntry
	for t := range trucks {
		for d := range trucks[t].Days {
			day := &trucks[t].Days[d]
			end := 0
			for _, shift := range []schedule.Shift{schedule.Morning, schedule.Afternoon} {
				end = appendRoute(&out, ds, day.Get(shift), t+1, d+1, end)
			}
		}
	}
	return out
}

func appendRoute(out *[]model.ScheduleEntry, ds *model.Dataset, r *schedule.Route, truck, day, start int) int {
	if r.Len() < 3 {
		return 0
	}
	last := 0
	i := 1
	for node := r.Next(r.Head()); node != arena.None; node = r.Next(node) {
		*out = append(*out, model.ScheduleEntry{Truck: truck, Day: day, Seq: start + i, Order: ds.Orders[r.Order(node)].ID})
		last = i
		i++
	}
	return last
}

// Write prints entries one per line.
func Write(w io.Writer, entries []model.ScheduleEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%d; %d; %d; %d\n", e.Truck, e.Day, e.Seq, e.Order); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FileName is "<round> <score in minutes>.txt".
func FileName(round int, score model.Time) string {
	return fmt.Sprintf("%d %d.txt", round, score/model.Minute)
}

// Dir is a sink that writes every kept round to its own file under Path.
type Dir struct {
	Path string
	// PerWorker puts each worker's files in a "worker-<id>" subdirectory.
	PerWorker bool

	mu sync.Mutex
}

func (d *Dir) Report(_ context.Context, it opt.Iteration) error {
	if !it.Improved || it.Solution == nil {
		return nil
	}
	dir := d.Path
	if d.PerWorker {
		dir = filepath.Join(dir, fmt.Sprintf("worker-%d", it.Worker))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("printer: %w", err)
	}
	fh, err := os.Create(filepath.Join(dir, FileName(it.Round, it.Score)))
	if err != nil {
		return fmt.Errorf("printer: %w", err)
	}
	if err := Write(fh, Records(it.Solution)); err != nil {
		fh.Close()
		return fmt.Errorf("printer: %w", err)
	}
	return fh.Close()
}
