package futurize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Variants(t *testing.T) {
	cur := Current[string](3)
	v, ok := cur.Current()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.False(t, cur.IsTerminal())
	_, ok = cur.Completed()
	assert.False(t, ok)

	done := Completed[int]("img")
	d, ok := done.Completed()
	assert.True(t, ok)
	assert.Equal(t, "img", d)
	assert.True(t, done.IsTerminal())
	assert.NoError(t, done.Err())

	boom := errors.New("boom")
	failed := Error[int, string](boom)
	assert.Equal(t, KindError, failed.Kind())
	assert.ErrorIs(t, failed.Err(), boom)
	assert.Equal(t, "error(boom)", failed.String())

	assert.ErrorIs(t, Error[int, string](nil).Err(), ErrNoOutcome)
	assert.True(t, Canceled[int, string]().IsTerminal())
	assert.False(t, consumed[int, string]().IsTerminal())
	assert.False(t, pending[int, string]().IsTerminal())
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		KindPending:   "pending",
		KindCurrent:   "current",
		KindCompleted: "completed",
		KindError:     "error",
		KindCanceled:  "canceled",
		KindConsumed:  "consumed",
		Kind(42):      "unknown(42)",
	} {
		assert.Equal(t, want, k.String())
	}
}

func TestSlot_SealsOnTerminal(t *testing.T) {
	s := newSlot[int, int]()
	assert.True(t, s.store(Current[int](1)))
	assert.True(t, s.store(Completed[int](2)))
	assert.False(t, s.store(Current[int](3)))

	p, version := s.take()
	assert.Equal(t, KindCompleted, p.Kind())
	assert.Equal(t, uint64(2), version)

	p, _ = s.take()
	assert.Equal(t, KindConsumed, p.Kind())
}
