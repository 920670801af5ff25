package perftester

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"
)

// DefaultTraceInterval is how often memory is read while a subject runs.
const DefaultTraceInterval = 10 * time.Millisecond

const bytesPerMB = 1e6

// MemoryReader returns the current memory usage of the process in MB.
type MemoryReader interface {
	ReadMemory() (float64, error)
}

// MemoryReaderFunc adapts a function to MemoryReader.
type MemoryReaderFunc func() (float64, error)

func (f MemoryReaderFunc) ReadMemory() (float64, error) { return f() }

type rssReader struct {
	once sync.Once
	proc *process.Process
	err  error
}

// RSSReader reads the resident set size of the current process.
func RSSReader() MemoryReader {
	return &rssReader{}
}

func (r *rssReader) ReadMemory() (float64, error) {
	r.once.Do(func() {
		r.proc, r.err = process.NewProcess(int32(os.Getpid()))
	})
	if r.err != nil {
		return 0, errors.Wrap(r.err, "opening current process")
	}
	info, err := r.proc.MemoryInfo()
	if err != nil {
		return 0, errors.Wrap(err, "reading resident memory")
	}
	return float64(info.RSS) / bytesPerMB, nil
}

// HeapReader reads the bytes of in-use heap spans. It is cheaper and less
// noisy than RSS but ignores stacks and runtime overhead.
func HeapReader() MemoryReader {
	return MemoryReaderFunc(func() (float64, error) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.HeapInuse) / bytesPerMB, nil
	})
}

// Sampler runs subjects and returns raw observations. It knows nothing about
// settings or limits.
type Sampler struct {
	Memory   MemoryReader  // Source of memory readings (default: RSSReader)
	Interval time.Duration // Reading interval during a memory trace
}

// NewSampler returns a sampler reading RSS every DefaultTraceInterval.
func NewSampler() *Sampler {
	return &Sampler{Memory: RSSReader(), Interval: DefaultTraceInterval}
}

// SampleTime times repeat batches of number consecutive calls. Every
// returned value is the mean time of a single call within its batch, in
// seconds, so number does not change the magnitude of the result.
func (sm *Sampler) SampleTime(s *Subject, number, repeat int, args ...any) ([]float64, error) {
	if number <= 0 {
		return nil, incorrectArgument("number", "must be a positive integer, got %d", number)
	}
	if repeat <= 0 {
		return nil, incorrectArgument("repeat", "must be a positive integer, got %d", repeat)
	}

	times := make([]float64, 0, repeat)
	for i := 0; i < repeat; i++ {
		runtime.GC()
		start := time.Now()
		failed := s.call(number, args)
		elapsed := time.Since(start)
		if failed != nil {
			return nil, failed.toFunctionError(s.Name())
		}
		times = append(times, elapsed.Seconds()/float64(number))
	}
	return times, nil
}

// SampleMemory calls the subject repeat times, once per trace, and returns
// the memory readings (MB) collected during each call.
func (sm *Sampler) SampleMemory(s *Subject, repeat int, args ...any) ([][]float64, error) {
	if repeat <= 0 {
		return nil, incorrectArgument("repeat", "must be a positive integer, got %d", repeat)
	}

	traces := make([][]float64, 0, repeat)
	for i := 0; i < repeat; i++ {
		readings, failed, err := sm.trace(s, args)
		if failed != nil {
			return nil, failed.toFunctionError(s.Name())
		}
		if err != nil {
			return nil, err
		}
		traces = append(traces, readings)
	}
	return traces, nil
}

// trace runs a single call while a goroutine reads memory every Interval.
// Readings are also taken right before and right after the call, so a trace
// is never empty.
func (sm *Sampler) trace(s *Subject, args []any) ([]float64, *subjectFailed, error) {
	reader := sm.Memory
	if reader == nil {
		reader = RSSReader()
	}
	interval := sm.Interval
	if interval <= 0 {
		interval = DefaultTraceInterval
	}

	runtime.GC()
	first, err := reader.ReadMemory()
	if err != nil {
		return nil, nil, err
	}

	var (
		mu       sync.Mutex
		readings = []float64{first}
	)

	ctx, stop := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				v, err := reader.ReadMemory()
				if err != nil {
					return err
				}
				mu.Lock()
				readings = append(readings, v)
				mu.Unlock()
			}
		}
	})

	failed := s.call(1, args)
	stop()
	if err := g.Wait(); err != nil {
		return nil, failed, err
	}

	last, err := reader.ReadMemory()
	if err != nil {
		return nil, failed, err
	}
	readings = append(readings, last)
	return readings, failed, nil
}
