// Package modelselection provides seeded train/test splitting and k-fold
// cross-validation.
package modelselection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// Split holds row indices of the two partitions.
type Split struct {
	Train []int
	Test  []int
}

// newRand は seed から決定的な乱数生成器を作成する
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// TrainTestSplit permutes [0, n) with a PCG source seeded by seed and takes
// the first ceil(testSize*n) indices as the test partition. The same inputs
// always produce the same split.
func TrainTestSplit(n int, testSize float64, seed int64) (*Split, error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g the train or test partition is empty", n, testSize))
	}

	perm := newRand(seed).Perm(n)
	return &Split{
		Train: append([]int(nil), perm[nTest:]...),
		Test:  append([]int(nil), perm[:nTest]...),
	}, nil
}

// Rows gathers the rows of X listed in indices, in that order.
func Rows(X mat.Matrix, indices []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(indices), c, nil)
	for i, idx := range indices {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// SplitXY applies s to a feature matrix and a target column.
func SplitXY(X, y mat.Matrix, s *Split) (XTrain, XTest, yTrain, yTest *mat.Dense) {
	return Rows(X, s.Train), Rows(X, s.Test), Rows(y, s.Train), Rows(y, s.Test)
}
