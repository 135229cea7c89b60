package driver_test

import (
	"context"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rawblock/pitchfork/driver"
	"github.com/rawblock/pitchfork/memory"
	"github.com/rawblock/pitchfork/solver"
)

var _ = Describe("PathState", func() {
	It("forks into two independent successors", func() {
		h := solver.New()
		mem := memory.NewZeroInitialized(h, 64, 8, false, "mem", nil)
		p := &driver.PathState{ID: 0, Solver: h, Mem: mem}

		a, b, err := p.Fork(1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.ID).To(Equal(1))
		Expect(b.ID).To(Equal(2))
		Expect(a.Solver.ID()).NotTo(Equal(b.Solver.ID()))
	})
})

var _ = Describe("Explorer", func() {
	It("drains a frontier that forks once per path", func() {
		h := solver.New()
		mem := memory.NewZeroInitialized(h, 64, 8, false, "mem", nil)
		root := &driver.PathState{ID: 0, Solver: h, Mem: mem}

		var visited int64
		exp := &driver.Explorer{MaxParallel: 4}
		errs := exp.Run(context.Background(), []*driver.PathState{root}, func(_ context.Context, p *driver.PathState) ([]*driver.PathState, error) {
			atomic.AddInt64(&visited, 1)
			if p.ID != 0 {
				return nil, nil
			}
			a, b, err := p.Fork(1, 2)
			if err != nil {
				return nil, err
			}
			return []*driver.PathState{a, b}, nil
		})

		Expect(errs).To(BeEmpty())
		Expect(atomic.LoadInt64(&visited)).To(Equal(int64(3)))
	})
})
