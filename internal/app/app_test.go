package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg   *Config
		error string
	}{
		"nil config": {
			error: "app config required",
		},
		"empty config": {
			cfg:   &Config{},
			error: "name is required\nstop timeout is required",
		},
		"valid": {
			cfg: &Config{Name: "test", StopTimeout: time.Second},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			got, err := New(test.cfg)
			if test.error != "" {
				req.EqualError(err, test.error)
				req.Nil(got)
				return
			}
			req.NoError(err)
			req.NotNil(got)
		})
	}
}

func newDep(ctrl *gomock.Controller, name string) *MockDependency {
	dep := NewMockDependency(ctrl)
	dep.EXPECT().Name().Return(name).AnyTimes()
	return dep
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestApp_Run(t *testing.T) {
	t.Run("starts in order and stops in reverse", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		first, second := newDep(ctrl, "first"), newDep(ctrl, "second")
		gomock.InOrder(
			first.EXPECT().Start().Return(nil),
			second.EXPECT().Start().Return(nil),
			second.EXPECT().Stop().Return(nil),
			first.EXPECT().Stop().Return(nil),
		)

		a, err := New(&Config{Name: "test", StopTimeout: time.Second}, first, second)
		req.NoError(err)
		req.NoError(a.Run(cancelled()))
		req.EqualError(a.Run(cancelled()), "run has already been called")
	})

	t.Run("start failure stops what was started", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		first, second, third := newDep(ctrl, "first"), newDep(ctrl, "second"), newDep(ctrl, "third")
		first.EXPECT().Start().Return(nil)
		second.EXPECT().Start().Return(errors.New("address in use"))
		first.EXPECT().Stop().Return(nil)

		a, err := New(&Config{Name: "test", StopTimeout: time.Second}, first, second, third)
		req.NoError(err)

		err = a.Run(context.Background())
		req.ErrorContains(err, "failure in Start() for dependency second: address in use")
	})

	t.Run("start panic", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		dep := newDep(ctrl, "fragile")
		dep.EXPECT().Start().DoAndReturn(func() error { panic("boom") })

		a, err := New(&Config{Name: "test", StopTimeout: time.Second}, dep)
		req.NoError(err)
		req.ErrorContains(a.Run(context.Background()), "panic in Start() for dependency fragile: boom")
	})

	t.Run("stop errors are joined", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		first, second := newDep(ctrl, "first"), newDep(ctrl, "second")
		first.EXPECT().Start().Return(nil)
		second.EXPECT().Start().Return(nil)
		first.EXPECT().Stop().Return(errors.New("flush failed"))
		second.EXPECT().Stop().Return(errors.New("close failed"))

		a, err := New(&Config{Name: "test", StopTimeout: time.Second}, first, second)
		req.NoError(err)

		err = a.Run(cancelled())
		req.ErrorContains(err, "failure in Stop() for dependency first: flush failed")
		req.ErrorContains(err, "failure in Stop() for dependency second: close failed")
	})

	t.Run("stop timeout", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		called, release := make(chan struct{}), make(chan struct{})
		dep := newDep(ctrl, "slow")
		dep.EXPECT().Start().Return(nil)
		dep.EXPECT().Stop().DoAndReturn(func() error {
			close(called)
			<-release
			return nil
		})

		a, err := New(&Config{Name: "test", StopTimeout: 20 * time.Millisecond}, dep)
		req.NoError(err)
		req.EqualError(a.Run(cancelled()), "test did not stop within 20ms")

		<-called
		close(release)
	})
}
