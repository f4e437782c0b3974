package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions ds into train and test parts preserving the
// label proportions. The test part holds ceil(testSize*n) rows. Row
// membership and order depend only on ds and seed.
func StratifiedSplit(ds *Dataset, testSize float64, seed int64) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	n := ds.Len()
	if n < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}

	nTest := int(math.Ceil(testSize*float64(n) - 1e-9))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("test size %v leaves an empty part for %d rows", testSize, n)
	}

	rng := rand.New(rand.NewSource(seed))

	// Group row positions by class, classes in ascending label order
	classSamples := make(map[int][]int)
	for i, r := range ds.records {
		classSamples[r.Recommande] = append(classSamples[r.Recommande], i)
	}
	classes := make([]int, 0, len(classSamples))
	for c := range classSamples {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	counts := make([]int, len(classes))
	for k, c := range classes {
		samples := classSamples[c]
		rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
		counts[k] = len(samples)
	}

	alloc, err := allocateTest(counts, n, nTest)
	if err != nil {
		return nil, nil, err
	}

	var trainIndices, testIndices []int
	for k, c := range classes {
		samples := classSamples[c]
		testIndices = append(testIndices, samples[:alloc[k]]...)
		trainIndices = append(trainIndices, samples[alloc[k]:]...)
	}

	rng.Shuffle(len(trainIndices), func(i, j int) {
		trainIndices[i], trainIndices[j] = trainIndices[j], trainIndices[i]
	})
	rng.Shuffle(len(testIndices), func(i, j int) {
		testIndices[i], testIndices[j] = testIndices[j], testIndices[i]
	})

	return ds.subset(trainIndices), ds.subset(testIndices), nil
}

// allocateTest distributes nTest rows across classes in proportion to
// counts using largest remainders, ties to the earlier class. Classes with
// two or more rows end up with at least one row on each side.
func allocateTest(counts []int, n, nTest int) ([]int, error) {
	k := len(counts)
	share := make([]float64, k)
	alloc := make([]int, k)
	lower := make([]int, k)
	upper := make([]int, k)

	assigned := 0
	for i, c := range counts {
		share[i] = float64(nTest) * float64(c) / float64(n)
		alloc[i] = int(math.Floor(share[i]))
		assigned += alloc[i]
		if c >= 2 {
			lower[i], upper[i] = 1, c-1
		} else {
			lower[i], upper[i] = 0, c
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra := share[order[a]] - float64(alloc[order[a]])
		rb := share[order[b]] - float64(alloc[order[b]])
		return ra > rb
	})
	for _, i := range order {
		if assigned == nTest {
			break
		}
		alloc[i]++
		assigned++
	}

	for i := range alloc {
		if alloc[i] < lower[i] {
			assigned += lower[i] - alloc[i]
			alloc[i] = lower[i]
		}
		if alloc[i] > upper[i] {
			assigned -= alloc[i] - upper[i]
			alloc[i] = upper[i]
		}
	}

	// Restore the exact total, moving rows from the classes furthest from
	// their proportional share.
	for assigned != nTest {
		best := -1
		bestGap := math.Inf(-1)
		for i := range alloc {
			var gap float64
			if assigned > nTest {
				if alloc[i] <= lower[i] {
					continue
				}
				gap = float64(alloc[i]) - share[i]
			} else {
				if alloc[i] >= upper[i] {
					continue
				}
				gap = share[i] - float64(alloc[i])
			}
			if gap > bestGap {
				best, bestGap = i, gap
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("cannot place %d test rows across classes %v", nTest, counts)
		}
		if assigned > nTest {
			alloc[best]--
			assigned--
		} else {
			alloc[best]++
			assigned++
		}
	}

	return alloc, nil
}
