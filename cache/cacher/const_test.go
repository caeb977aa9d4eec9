package cacher

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type ConstSuite struct {
	suite.Suite
}

func (s *ConstSuite) TestLoadsOnce() {
	s.Require().Panics(func() { NewConst[int](nil) })

	var calls atomic.Int64
	c := NewConst(func() int64 { return calls.Inc() })
	s.Require().False(c.IsLoaded())

	values := make([]int64, 20)
	var wg sync.WaitGroup
	for k := 0; k < 20; k++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i] = c.Get()
		}(k)
	}
	wg.Wait()

	for k := 0; k < 20; k++ {
		s.Require().Equal(int64(1), values[k])
	}
	s.Require().True(c.IsLoaded())

	c.Clear()
	s.Require().False(c.IsLoaded())
	s.Require().Equal(int64(2), c.Get())
}

func TestConst(t *testing.T) {
	suite.Run(t, new(ConstSuite))
}
