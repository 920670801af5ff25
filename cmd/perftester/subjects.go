package main

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nyggus/perftester"
)

var (
	_ = perftester.RegisterSubject(perftester.SubjectOf("noop", func() {}))

	// sleep <milliseconds>
	_ = perftester.RegisterSubject(perftester.NewSubject("sleep", func(args ...any) error {
		ms, err := perftester.IntArg(args, 0)
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return nil
	}))

	// sum_sqrt <n>
	_ = perftester.RegisterSubject(perftester.NewSubject("sum_sqrt", func(args ...any) error {
		n, err := perftester.IntArg(args, 0)
		if err != nil {
			return err
		}
		sumSqrt(n)
		return nil
	}))

	// alloc <megabytes>
	_ = perftester.RegisterSubject(perftester.NewSubject("alloc", func(args ...any) error {
		mb, err := perftester.IntArg(args, 0)
		if err != nil {
			return err
		}
		buf := make([]byte, mb*1_000_000)
		for i := 0; i < len(buf); i += 4096 {
			buf[i] = 1
		}
		sink = buf
		sink = nil
		return nil
	}))

	_ = perftester.RegisterSubject(perftester.NewSubject("fail", func(args ...any) error {
		return errors.WithStack(&unavailableError{resource: "demo backend"})
	}))
)

type unavailableError struct {
	resource string
}

func (e *unavailableError) Error() string { return e.resource + " is unavailable" }

var (
	sink   []byte
	result float64
)

func sumSqrt(n int) {
	total := 0.0
	for i := 0; i < n; i++ {
		total += math.Sqrt(float64(i))
	}
	result = total
}
