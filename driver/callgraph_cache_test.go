package driver_test

import (
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/rawblock/pitchfork/driver"
)

func buildSSAProgram(source string) *ssa.Program {
	GinkgoHelper()

	tempDir, err := os.MkdirTemp("", "callgraph-cache-test")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		_ = os.RemoveAll(tempDir)
	})

	err = os.WriteFile(filepath.Join(tempDir, "go.mod"), []byte("module callgraphcachetest\n\ngo 1.25\n"), 0o600)
	Expect(err).NotTo(HaveOccurred())
	err = os.WriteFile(filepath.Join(tempDir, "main.go"), []byte(source), 0o600)
	Expect(err).NotTo(HaveOccurred())

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedDeps | packages.NeedImports, Dir: tempDir}
	pkgs, err := packages.Load(cfg, ".")
	Expect(err).NotTo(HaveOccurred())
	Expect(pkgs).NotTo(BeEmpty())
	Expect(pkgs[0].Errors).To(BeEmpty())

	prog, _ := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()
	return prog
}

var _ = Describe("CallGraphCache", func() {
	It("returns nil callgraph for nil receiver", func() {
		var cache *driver.CallGraphCache
		Expect(cache.CallGraph()).To(BeNil())
	})

	It("returns nil callgraph when program is nil", func() {
		cache := driver.NewCallGraphCache(nil)
		Expect(cache.CallGraph()).To(BeNil())
	})

	It("builds and memoizes callgraph for a valid program", func() {
		prog := buildSSAProgram(`package main

func helper() {}

func main() {
	helper()
}`)
		cache := driver.NewCallGraphCache(prog)

		first := cache.CallGraph()
		Expect(first).NotTo(BeNil())

		second := cache.CallGraph()
		Expect(second).To(BeIdenticalTo(first))
	})

	It("resolves a function pointer by name", func() {
		prog := buildSSAProgram(`package main

func helper() {}

func main() {
	helper()
}`)
		cache := driver.NewCallGraphCache(prog)

		fn, ok := cache.ResolveFunctionPointer("helper")
		Expect(ok).To(BeTrue())
		Expect(fn).NotTo(BeNil())
		Expect(fn.Name()).To(Equal("helper"))

		_, ok = cache.ResolveFunctionPointer("does_not_exist")
		Expect(ok).To(BeFalse())
	})

	It("is concurrency-safe and initializes once", func() {
		prog := buildSSAProgram(`package main

func helper() {}

func main() {
	helper()
}`)
		cache := driver.NewCallGraphCache(prog)

		const workers = 12
		graphs := make([]any, workers)
		var wg sync.WaitGroup

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				graphs[idx] = cache.CallGraph()
			}(i)
		}
		wg.Wait()

		Expect(graphs[0]).NotTo(BeNil())
		for i := 1; i < workers; i++ {
			Expect(graphs[i]).To(BeIdenticalTo(graphs[0]))
		}
	})
})
