package strategy_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
	"github.com/angeloszaimis/failover-balancer/internal/strategy"
)

var _ = Describe("Leastconn", func() {
	var (
		strat    strategy.Strategy
		backends []*backend.Backend
	)

	BeforeEach(func() {
		strat = strategy.NewLeastConnStrategy()
		backends = []*backend.Backend{
			newBackend("http://localhost:8081", 1),
			newBackend("http://localhost:8082", 1),
			newBackend("http://localhost:8083", 1),
		}
	})

	Describe("Select", func() {
		It("should select backend with fewest connections", func() {
			backends[0].IncrementConn()
			backends[0].IncrementConn()
			backends[1].IncrementConn()

			Expect(pick(strat, backends)).To(Equal(backends[2]))
		})

		It("should keep the earliest backend on ties", func() {
			Expect(pick(strat, backends)).To(Equal(backends[0]))
		})

		It("should select nothing for empty backend list", func() {
			_, ok := strat.Select(nil)
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("LeastResponse", func() {
	var (
		strat    strategy.Strategy
		backends []*backend.Backend
	)

	BeforeEach(func() {
		strat = strategy.NewLeastResponseStrategy()
		backends = []*backend.Backend{
			newBackend("http://localhost:8081", 1),
			newBackend("http://localhost:8082", 1),
			newBackend("http://localhost:8083", 1),
		}
	})

	It("should select backend with lowest EWMA response time", func() {
		backends[0].RecordResponse(100 * time.Millisecond)
		backends[1].RecordResponse(50 * time.Millisecond)
		backends[2].RecordResponse(200 * time.Millisecond)

		Expect(pick(strat, backends)).To(Equal(backends[1]))
	})

	It("should weigh response time by active connections", func() {
		backends[0].RecordResponse(100 * time.Millisecond)
		backends[1].RecordResponse(50 * time.Millisecond)
		backends[2].RecordResponse(200 * time.Millisecond)
		for i := 0; i < 3; i++ {
			backends[1].IncrementConn()
		}

		Expect(pick(strat, backends)).To(Equal(backends[0]))
	})

	It("should select first backend when all have zero EWMA", func() {
		Expect(pick(strat, backends)).To(Equal(backends[0]))
	})

	It("should try an unmeasured backend first", func() {
		backends[0].RecordResponse(10 * time.Millisecond)
		backends[1].RecordResponse(10 * time.Millisecond)

		Expect(pick(strat, backends)).To(Equal(backends[2]))
	})

	It("should select nothing for empty backend list", func() {
		_, ok := strat.Select([]*backend.Backend{})
		Expect(ok).To(BeFalse())
	})
})
