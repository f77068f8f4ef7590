package convergence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/riotkit-org/backup-e2e/pkg/convergence"
	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

func TestConvergence(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Convergence Suite")
}

const (
	runningRecord  = `{"status": {"healthy": true, "childrenResourcesHealth": [{"running": true}]}}`
	finishedRecord = `{"status": {"healthy": true, "childrenResourcesHealth": [{"running": false}]}}`
	emptyRecord    = `{"status": {"healthy": true, "childrenResourcesHealth": []}}`
	failedRecord   = `{"status": {"healthy": false, "childrenResourcesHealth": [{"running": false}]}}`
)

type response struct {
	raw string
	err error
}

// scriptedFetcher replays responses in order and repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses map[string][]response
	calls     map[string]int
	namespace string
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		responses: map[string][]response{},
		calls:     map[string]int{},
	}
}

func (f *scriptedFetcher) script(name string, responses ...response) *scriptedFetcher {
	f.responses[name] = responses
	return f
}

func (f *scriptedFetcher) FetchActionStatus(_ context.Context, name, namespace string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.namespace = namespace
	idx := f.calls[name]
	f.calls[name]++

	script := f.responses[name]
	if len(script) == 0 {
		return nil, srvErrors.NewResourceNotFoundError("requestedbackupaction", name, namespace)
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	r := script[idx]
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.raw), nil
}

func (f *scriptedFetcher) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

var _ = Describe("Poller", func() {
	var (
		ctx     context.Context
		fetcher *scriptedFetcher
		waits   []time.Duration
		onRetry convergence.RetryFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		fetcher = newScriptedFetcher()
		waits = nil
		onRetry = func(_ int, _ error, wait time.Duration) {
			waits = append(waits, wait)
		}
	})

	Context("Poll", func() {
		// Given a finished healthy action
		// When we poll expecting convergence
		// Then it returns true on the first attempt without sleeping
		It("should return immediately when the first status matches", func() {
			// Arrange
			fetcher.script("backup", response{raw: finishedRecord})
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithOnRetry(onRetry))

			// Act
			converged, err := poller.Poll(ctx, "backup", true, 3, time.Second)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())
			Expect(fetcher.Calls("backup")).To(Equal(1))
			Expect(waits).To(BeEmpty())
			Expect(fetcher.namespace).To(Equal("subject"))
		})

		// Given an action that runs for two polls then finishes
		// When we poll with enough budget
		// Then it returns true on the third attempt after two waits
		It("should retry until the action finishes", func() {
			// Arrange
			fetcher.script("backup",
				response{raw: runningRecord},
				response{raw: runningRecord},
				response{raw: finishedRecord},
			)
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithOnRetry(onRetry))

			// Act
			converged, err := poller.Poll(ctx, "backup", true, 5, 10*time.Millisecond)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())
			Expect(fetcher.Calls("backup")).To(Equal(3))
			Expect(waits).To(Equal([]time.Duration{10 * time.Millisecond, 10 * time.Millisecond}))
		})

		// Given an action that never finishes
		// When the retry budget is exhausted
		// Then the last observed value is returned without error after N+1 fetches
		It("should return the last value when retries are exhausted", func() {
			// Arrange
			fetcher.script("backup", response{raw: runningRecord})
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithOnRetry(onRetry))

			// Act
			converged, err := poller.Poll(ctx, "backup", true, 2, time.Millisecond)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())
			Expect(fetcher.Calls("backup")).To(Equal(3))
			Expect(waits).To(HaveLen(2))
		})

		// Given a first fetch returning garbage and a second with an empty child list
		// When we poll expecting convergence
		// Then the parse error consumes one attempt and the second attempt succeeds
		It("should treat parse errors as transient", func() {
			// Arrange
			fetcher.script("backup",
				response{raw: `{"status": `},
				response{raw: emptyRecord},
			)
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithOnRetry(onRetry))

			// Act
			converged, err := poller.Poll(ctx, "backup", true, 2, time.Millisecond)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())
			Expect(fetcher.Calls("backup")).To(Equal(2))
			Expect(waits).To(HaveLen(1))
		})

		It("should propagate a fetch failure on the final attempt", func() {
			// Arrange
			fetcher.script("backup",
				response{raw: runningRecord},
				response{err: errors.New("connection refused")},
			)
			poller := convergence.NewPoller(fetcher, "subject")

			// Act
			converged, err := poller.Poll(ctx, "backup", true, 1, time.Millisecond)

			// Assert
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsFetchError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("connection refused"))
			Expect(converged).To(BeFalse())
			Expect(fetcher.Calls("backup")).To(Equal(2))
		})

		It("should treat a missing resource like any other fetch failure", func() {
			poller := convergence.NewPoller(fetcher, "subject")

			_, err := poller.Poll(ctx, "unknown", true, 2, time.Millisecond)

			Expect(srvErrors.IsFetchError(err)).To(BeTrue())
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
			Expect(fetcher.Calls("unknown")).To(Equal(3))
		})

		It("should perform a single fetch with a zero budget", func() {
			fetcher.script("backup", response{raw: runningRecord})
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithOnRetry(onRetry))

			converged, err := poller.Poll(ctx, "backup", true, 0, time.Hour)

			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())
			Expect(fetcher.Calls("backup")).To(Equal(1))
			Expect(waits).To(BeEmpty())
		})

		It("should match an expectation of non-convergence", func() {
			fetcher.script("backup", response{raw: failedRecord})
			poller := convergence.NewPoller(fetcher, "subject")

			converged, err := poller.Poll(ctx, "backup", false, 3, time.Millisecond)

			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())
			Expect(fetcher.Calls("backup")).To(Equal(1))
		})

		It("should not flap on an already converged resource", func() {
			fetcher.script("backup", response{raw: finishedRecord})
			poller := convergence.NewPoller(fetcher, "subject")

			for range 5 {
				converged, err := poller.Poll(ctx, "backup", true, 0, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(converged).To(BeTrue())
			}
			Expect(fetcher.Calls("backup")).To(Equal(5))
		})

		It("should stop when the context is cancelled", func() {
			fetcher.script("backup", response{raw: runningRecord})
			poller := convergence.NewPoller(fetcher, "subject")
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := poller.Poll(cctx, "backup", true, 1000, 10*time.Millisecond)

			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
		})
	})

	Context("WithRequireChildren", func() {
		// Given an action whose Job was not created yet
		// When we poll in strict mode
		// Then the empty child list is not mistaken for completion
		It("should not report convergence before any child exists", func() {
			fetcher.script("backup",
				response{raw: emptyRecord},
				response{raw: runningRecord},
				response{raw: finishedRecord},
			)
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithRequireChildren())

			converged, err := poller.Poll(ctx, "backup", true, 5, time.Millisecond)

			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())
			Expect(fetcher.Calls("backup")).To(Equal(3))
		})

		It("should give up with false when no child ever appears", func() {
			fetcher.script("backup", response{raw: emptyRecord})
			poller := convergence.NewPoller(fetcher, "subject", convergence.WithRequireChildren())

			converged, err := poller.Poll(ctx, "backup", true, 1, time.Millisecond)

			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())
		})
	})

	Context("PollAll", func() {
		It("should poll every action independently", func() {
			fetcher.
				script("backup", response{raw: runningRecord}, response{raw: finishedRecord}).
				script("restore", response{raw: finishedRecord})
			poller := convergence.NewPoller(fetcher, "subject")

			results, err := poller.PollAll(ctx, []string{"backup", "restore"}, true, 3, time.Millisecond)

			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(Equal(map[string]bool{"backup": true, "restore": true}))
			Expect(fetcher.Calls("backup")).To(Equal(2))
			Expect(fetcher.Calls("restore")).To(Equal(1))
		})

		It("should return the first terminal fetch error", func() {
			fetcher.script("backup", response{raw: finishedRecord})
			poller := convergence.NewPoller(fetcher, "subject")

			_, err := poller.PollAll(ctx, []string{"backup", "missing"}, true, 1, time.Millisecond)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`"missing"`))
		})
	})
})
