package strategy_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
)

var _ = Describe("ConsistentHash", func() {
	var (
		strat    strategy.Strategy
		hasher   strategy.Keyed
		backends []*backend.Backend
	)

	BeforeEach(func() {
		strat = strategy.NewConsistentHashStrategy(100)
		backends = []*backend.Backend{
			newBackend("http://localhost:8081", 1),
			newBackend("http://localhost:8082", 1),
			newBackend("http://localhost:8083", 1),
		}

		var ok bool
		hasher, ok = strat.(strategy.Keyed)
		Expect(ok).To(BeTrue())
	})

	Describe("Select with SetKey", func() {
		It("should return same backend for same IP", func() {
			ip := "192.168.1.100"
			hasher.SetKey(ip)
			first := pick(strat, backends)
			Expect(first).NotTo(BeNil())

			for i := 0; i < 5; i++ {
				hasher.SetKey(ip)
				Expect(pick(strat, backends)).To(Equal(first))
			}
		})

		It("should spread different keys across backends", func() {
			seen := make(map[*backend.Backend]bool)
			for i := 0; i < 200; i++ {
				hasher.SetKey(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
				seen[pick(strat, backends)] = true
			}

			Expect(len(seen)).To(BeNumerically(">=", 2))
		})

		It("should only remap keys owned by a removed backend", func() {
			owners := make(map[string]*backend.Backend)
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("client-%d", i)
				hasher.SetKey(key)
				owners[key] = pick(strat, backends)
			}

			remaining := backends[:2]
			for key, owner := range owners {
				hasher.SetKey(key)
				selected := pick(strat, remaining)
				Expect(remaining).To(ContainElement(selected))
				if owner != backends[2] {
					Expect(selected).To(Equal(owner))
				}
			}
		})

		It("should select nothing without candidates", func() {
			hasher.SetKey("192.168.1.100")
			_, ok := strat.Select(nil)
			Expect(ok).To(BeFalse())
		})
	})
})
