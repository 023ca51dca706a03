package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/watch"
)

var _ = Describe("Watcher", func() {
	var (
		dir   string
		calls atomic.Int32
		ctx   context.Context
		stop  context.CancelFunc
		done  chan error
	)

	start := func(fn func(context.Context) error, opts ...watch.Option) {
		w := watch.New(fn, append([]watch.Option{watch.WithDebounce(50 * time.Millisecond)}, opts...)...)
		done = make(chan error, 1)
		go func() { done <- w.Run(ctx, dir) }()
		// let the watch register before writing
		time.Sleep(50 * time.Millisecond)
	}

	write := func(name string) {
		Expect(os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		calls.Store(0)
		ctx, stop = context.WithCancel(context.Background())
		DeferCleanup(func() {
			stop()
			Eventually(done, "2s").Should(Receive(BeNil()))
		})
	})

	It("collapses a burst of changes into one call", func() {
		start(func(context.Context) error { calls.Add(1); return nil })

		write("laptop.jsonl")
		write("laptop.jsonl")
		write("Ryan.json")

		Eventually(calls.Load, "2s").Should(Equal(int32(1)))
		Consistently(calls.Load, "200ms").Should(Equal(int32(1)))
	})

	It("ignores hidden temp files and filtered paths", func() {
		own := filepath.Join(dir, "desktop.jsonl")
		start(
			func(context.Context) error { calls.Add(1); return nil },
			watch.WithIgnore(func(p string) bool { return p == own }),
		)

		write(".Ryan.json-123.tmp")
		write("desktop.jsonl")

		Consistently(calls.Load, "300ms").Should(BeZero())
	})

	It("keeps watching after a failed callback", func() {
		start(func(context.Context) error {
			calls.Add(1)
			return errors.New("corrupt log")
		})

		write("a.jsonl")
		Eventually(calls.Load, "2s").Should(Equal(int32(1)))

		write("b.jsonl")
		Eventually(calls.Load, "2s").Should(Equal(int32(2)))
	})
})
