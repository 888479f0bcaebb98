package cursor

import (
	"context"
	"sort"
	"testing"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/kebukeYi/TrainRecord/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tuples(ints ...int) []model.Tuple {
	out := make([]model.Tuple, len(ints))
	for i, n := range ints {
		out[i] = model.TupleOf(int64(n))
	}
	return out
}

func identity(t model.Tuple) model.Tuple { return t }

func listFactory(items []model.Tuple) ChildFactory[model.Tuple] {
	return func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		return NewListCursor(items, cont)
	}
}

// limitedFactory 每次打开只返回 limit 个元素, 然后以 ReturnLimitReached 停止;
func limitedFactory(items []model.Tuple, limit int) ChildFactory[model.Tuple] {
	return func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		c, err := NewListCursor(items, cont)
		if err != nil {
			return nil, err
		}
		return NewSkipLimitCursor[model.Tuple](c, 0, limit), nil
	}
}

type step[T any] struct {
	elem T
	cont []byte
}

func drain[T any](t *testing.T, c interfaces.Cursor[T]) ([]step[T], interfaces.NoNextReason, []byte) {
	t.Helper()
	ctx := context.Background()
	var out []step[T]
	for {
		ok, err := c.OnNext(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		elem, err := c.Next()
		require.NoError(t, err)
		cont, err := c.Continuation()
		require.NoError(t, err)
		out = append(out, step[T]{elem: elem, cont: cont})
	}
	cont, err := c.Continuation()
	require.NoError(t, err)
	return out, c.NoNextReason(), cont
}

func elems[T any](steps []step[T]) []T {
	out := make([]T, len(steps))
	for i, s := range steps {
		out[i] = s.elem
	}
	return out
}

// drainResuming keeps reopening the cursor from its continuation until the
// source is exhausted.
func drainResuming[T any](t *testing.T, open func(cont []byte) (interfaces.Cursor[T], error)) []T {
	t.Helper()
	var all []T
	var cont []byte
	for i := 0; i < 1000; i++ {
		c, err := open(cont)
		require.NoError(t, err)
		steps, reason, next := drain(t, c)
		require.NoError(t, c.Close())
		all = append(all, elems(steps)...)
		if reason.IsSourceExhausted() {
			assert.Nil(t, next)
			return all
		}
		cont = next
	}
	t.Fatal("cursor never reached the end of its source")
	return nil
}

// assertResumable checks that reopening from the continuation taken after each
// element yields exactly the remaining suffix.
func assertResumable[T any](t *testing.T, open func(cont []byte) (interfaces.Cursor[T], error)) {
	t.Helper()
	c, err := open(nil)
	require.NoError(t, err)
	full, reason, _ := drain(t, c)
	require.True(t, reason.IsSourceExhausted())
	for k, s := range full {
		resumed, err := open(s.cont)
		require.NoError(t, err)
		rest, reason, _ := drain(t, resumed)
		assert.True(t, reason.IsSourceExhausted())
		assert.Equal(t, elems(full[k+1:]), elems(rest), "resume after element %d", k)
		for i := range rest {
			assert.Equal(t, full[k+1+i].cont, rest[i].cont)
		}
	}
}

func sortedUnique(sets ...[]int) []model.Tuple {
	seen := map[int]bool{}
	var all []int
	for _, s := range sets {
		for _, n := range s {
			if !seen[n] {
				seen[n] = true
				all = append(all, n)
			}
		}
	}
	sort.Ints(all)
	return tuples(all...)
}

func TestListCursor_Protocol(t *testing.T) {
	ctx := context.Background()
	c, err := NewListCursor(tuples(1, 2), nil)
	require.NoError(t, err)

	_, err = c.Next()
	assert.True(t, errors.Is(err, common.ErrNoSuchElement))
	_, err = c.Continuation()
	assert.True(t, errors.Is(err, common.ErrIllegalContinuationAccess))

	ok, err := c.OnNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	// 重复调用 OnNext 不会再前进;
	ok, err = c.OnNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = c.Continuation()
	assert.True(t, errors.Is(err, common.ErrIllegalContinuationAccess))

	elem, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, model.TupleOf(int64(1)), elem)
	_, err = c.Next()
	assert.True(t, errors.Is(err, common.ErrNoSuchElement))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.OnNext(ctx)
	assert.True(t, errors.Is(err, common.ErrCursorClosed))
	_, err = c.Continuation()
	assert.True(t, errors.Is(err, common.ErrCursorClosed))
}

func TestListCursor_Resume(t *testing.T) {
	assertResumable[model.Tuple](t, listFactory(tuples(1, 2, 3, 4)))

	_, err := NewListCursor(tuples(1), encodeIndex(5))
	assert.True(t, errors.Is(err, common.ErrInvalidContinuation))
	_, err = NewListCursor(tuples(1), []byte{0xFF})
	assert.True(t, errors.Is(err, common.ErrInvalidContinuation))
}

func TestEmpty(t *testing.T) {
	steps, reason, cont := drain[int](t, Empty[int]())
	assert.Empty(t, steps)
	assert.Equal(t, interfaces.SourceExhausted, reason)
	assert.Nil(t, cont)
}

func TestFilterCursor(t *testing.T) {
	even := func(t model.Tuple) bool { return t[0].(int64)%2 == 0 }
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		inner, err := NewListCursor(tuples(1, 2, 3, 4, 5, 6, 7), cont)
		if err != nil {
			return nil, err
		}
		return NewFilterCursor[model.Tuple](inner, even), nil
	}
	c, err := open(nil)
	require.NoError(t, err)
	steps, reason, _ := drain(t, c)
	assert.Equal(t, tuples(2, 4, 6), elems(steps))
	assert.Equal(t, interfaces.SourceExhausted, reason)
	// continuation 是内部 cursor 的位置, 而不是过滤后结果的下标;
	assert.Equal(t, encodeIndex(4), steps[1].cont)

	assertResumable(t, open)
}

func TestFilterCursor_PassesLimitThrough(t *testing.T) {
	inner, err := NewListCursor(tuples(1, 3, 5, 7, 8), nil)
	require.NoError(t, err)
	limited := NewSkipLimitCursor[model.Tuple](inner, 0, 3)
	c := NewFilterCursor[model.Tuple](limited, func(t model.Tuple) bool { return t[0].(int64) > 6 })
	steps, reason, cont := drain[model.Tuple](t, c)
	assert.Empty(t, steps)
	assert.Equal(t, interfaces.ReturnLimitReached, reason)
	assert.Equal(t, encodeIndex(3), cont)
}

func TestInstrumentedFilterCursor(t *testing.T) {
	timer := utils.NewTimer(nil)
	inner, err := NewListCursor(tuples(1, 2, 3), nil)
	require.NoError(t, err)
	c := NewInstrumentedFilterCursor[model.Tuple](inner, func(t model.Tuple) bool { return t[0].(int64) != 2 }, timer, "test")
	steps, _, _ := drain[model.Tuple](t, c)
	assert.Equal(t, tuples(1, 3), elems(steps))
	assert.Equal(t, "Filter(test)", c.Name())
}

func TestMapCursor(t *testing.T) {
	inner, err := NewListCursor(tuples(1, 2), nil)
	require.NoError(t, err)
	c := NewMapCursor[model.Tuple, int64](inner, func(t model.Tuple) int64 { return t[0].(int64) * 10 })
	steps, _, _ := drain[int64](t, c)
	assert.Equal(t, []int64{10, 20}, elems(steps))
	assert.Equal(t, encodeIndex(2), steps[1].cont)
}

func TestSkipLimitCursor(t *testing.T) {
	inner, err := NewListCursor(tuples(1, 2, 3, 4, 5), nil)
	require.NoError(t, err)
	c := NewSkipLimitCursor[model.Tuple](inner, 1, 2)
	steps, reason, cont := drain[model.Tuple](t, c)
	assert.Equal(t, tuples(2, 3), elems(steps))
	assert.Equal(t, interfaces.ReturnLimitReached, reason)
	assert.Equal(t, encodeIndex(3), cont)

	inner, err = NewListCursor(tuples(1, 2, 3, 4, 5), nil)
	require.NoError(t, err)
	assert.Same(t, inner, ApplySkipLimit[model.Tuple](inner, 0, 0))
}

func TestSkipLimitCursor_ResumesInterruptedSkip(t *testing.T) {
	a, b := tuples(1, 3, 5, 7), tuples(2, 4, 6, 8)
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		inner, skip, err := ResumeSkip(cont, 5)
		if err != nil {
			return nil, err
		}
		union, err := NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{
			limitedFactory(a, 2), limitedFactory(b, 2),
		}, inner, nil)
		if err != nil {
			return nil, err
		}
		return ApplySkipLimit[model.Tuple](union, skip, 0), nil
	}

	// 第一次运行在跳过 3 个元素后因子游标限额暂停;
	c, err := open(nil)
	require.NoError(t, err)
	steps, reason, cont := drain(t, c)
	require.NoError(t, c.Close())
	assert.Empty(t, steps)
	assert.Equal(t, interfaces.ReturnLimitReached, reason)
	_, remaining, err := ResumeSkip(cont, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	assert.Equal(t, tuples(6, 7, 8), drainResuming(t, open))
}

func TestResumeSkip(t *testing.T) {
	inner, skip, err := ResumeSkip(nil, 4)
	require.NoError(t, err)
	assert.Nil(t, inner)
	assert.Equal(t, 4, skip)

	inner, skip, err = ResumeSkip(encodeIndex(2), 4)
	require.NoError(t, err)
	assert.Equal(t, encodeIndex(2), inner)
	assert.Equal(t, 0, skip)

	inner, skip, err = ResumeSkip(EncodeSkipContinuation(encodeIndex(2), 3), 4)
	require.NoError(t, err)
	assert.Equal(t, encodeIndex(2), inner)
	assert.Equal(t, 3, skip)

	inner, skip, err = ResumeSkip(EncodeSkipContinuation(nil, 1), 4)
	require.NoError(t, err)
	assert.Nil(t, inner)
	assert.Equal(t, 1, skip)

	_, _, err = ResumeSkip([]byte{common.SkipContinuationMarker, 0xFF}, 4)
	assert.True(t, errors.Is(err, common.ErrInvalidContinuation))
}

func TestUnionCursor(t *testing.T) {
	a, b, c := []int{1, 3, 5, 7}, []int{2, 3, 6, 7, 9}, []int{0, 7, 10}
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		return NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{
			listFactory(tuples(a...)), listFactory(tuples(b...)), listFactory(tuples(c...)),
		}, cont, nil)
	}
	cur, err := open(nil)
	require.NoError(t, err)
	steps, reason, cont := drain(t, cur)
	assert.Equal(t, sortedUnique(a, b, c), elems(steps))
	assert.Equal(t, interfaces.SourceExhausted, reason)
	assert.Nil(t, cont)

	assertResumable(t, open)
}

func TestUnionCursor_Reverse(t *testing.T) {
	cur, err := NewUnionCursor(identity, true, []ChildFactory[model.Tuple]{
		listFactory(tuples(9, 5, 1)), listFactory(tuples(8, 5, 2)),
	}, nil, nil)
	require.NoError(t, err)
	steps, _, _ := drain[model.Tuple](t, cur)
	assert.Equal(t, tuples(9, 8, 5, 2, 1), elems(steps))
}

func TestUnionCursor_PausesOnChildLimit(t *testing.T) {
	a, b := []int{1, 2, 3, 4, 5, 6}, []int{2, 4, 6, 8, 10}
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		return NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{
			limitedFactory(tuples(a...), 2), limitedFactory(tuples(b...), 3),
		}, cont, nil)
	}
	cur, err := open(nil)
	require.NoError(t, err)
	_, reason, cont := drain(t, cur)
	assert.Equal(t, interfaces.ReturnLimitReached, reason)
	assert.NotNil(t, cont)

	assert.Equal(t, sortedUnique(a, b), drainResuming(t, open))
}

func TestUnionCursor_Degenerate(t *testing.T) {
	cur, err := NewUnionCursor[model.Tuple](identity, false, nil, nil, nil)
	require.NoError(t, err)
	steps, reason, cont := drain[model.Tuple](t, cur)
	assert.Empty(t, steps)
	assert.Equal(t, interfaces.SourceExhausted, reason)
	assert.Nil(t, cont)

	one, err := NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{listFactory(tuples(1, 2))}, nil, nil)
	require.NoError(t, err)
	steps, _, _ = drain[model.Tuple](t, one)
	assert.Equal(t, tuples(1, 2), elems(steps))
}

func TestIntersectionCursor(t *testing.T) {
	a, b, c := []int{1, 2, 3, 5, 8, 9}, []int{2, 3, 4, 5, 9}, []int{0, 2, 5, 9, 11}
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		return NewIntersectionCursor(identity, false, []ChildFactory[model.Tuple]{
			listFactory(tuples(a...)), listFactory(tuples(b...)), listFactory(tuples(c...)),
		}, cont, nil)
	}
	cur, err := open(nil)
	require.NoError(t, err)
	steps, reason, cont := drain(t, cur)
	assert.Equal(t, tuples(2, 5, 9), elems(steps))
	assert.Equal(t, interfaces.SourceExhausted, reason)
	assert.Nil(t, cont)

	assertResumable(t, open)
}

func TestIntersectionCursor_Limited(t *testing.T) {
	a, b := []int{1, 2, 3, 4, 5, 6, 7, 8}, []int{2, 4, 5, 8}
	open := func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
		return NewIntersectionCursor(identity, false, []ChildFactory[model.Tuple]{
			limitedFactory(tuples(a...), 3), limitedFactory(tuples(b...), 1),
		}, cont, nil)
	}
	assert.Equal(t, tuples(2, 4, 5, 8), drainResuming(t, open))
}

func TestIntersectionMultiCursor(t *testing.T) {
	type entry struct {
		key   int64
		child string
	}
	keyOf := func(e entry) model.Tuple { return model.TupleOf(e.key) }
	left := []entry{{1, "l"}, {3, "l"}, {4, "l"}}
	right := []entry{{3, "r"}, {4, "r"}, {6, "r"}}
	factory := func(items []entry) ChildFactory[entry] {
		return func(cont []byte) (interfaces.Cursor[entry], error) {
			return NewListCursor(items, cont)
		}
	}
	cur, err := NewIntersectionMultiCursor(keyOf, false, []ChildFactory[entry]{factory(left), factory(right)}, nil, nil)
	require.NoError(t, err)
	steps, _, _ := drain[[]entry](t, cur)
	assert.Equal(t, [][]entry{
		{{3, "l"}, {3, "r"}},
		{{4, "l"}, {4, "r"}},
	}, elems(steps))
}

func TestIntersectionCursor_Executor(t *testing.T) {
	exec, err := utils.NewExecutor(2, nil)
	require.NoError(t, err)
	defer exec.Close()

	opt := &MergeOptions{Executor: exec, Timer: utils.NewTimer(nil)}
	children := make([]ChildFactory[model.Tuple], 0, 5)
	for i := 1; i <= 5; i++ {
		var ints []int
		for n := 0; n < 200; n += i {
			ints = append(ints, n)
		}
		children = append(children, listFactory(tuples(ints...)))
	}
	cur, err := NewIntersectionCursor(identity, false, children, nil, opt)
	require.NoError(t, err)
	steps, _, _ := drain[model.Tuple](t, cur)
	var want []int
	for n := 0; n < 200; n += 60 {
		want = append(want, n)
	}
	assert.Equal(t, tuples(want...), elems(steps))
}

func TestMerge_InvalidContinuation(t *testing.T) {
	children := []ChildFactory[model.Tuple]{listFactory(tuples(1)), listFactory(tuples(1))}
	one := encodeMerge([]childPosition{{}})
	_, err := NewUnionCursor(identity, false, children, one, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidContinuation))
	_, err = NewIntersectionCursor(identity, false, children, []byte{0x0A, 0x05}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidContinuation))
}

func TestMerge_ContinuationRoundTrip(t *testing.T) {
	in := []childPosition{{cont: []byte("abc")}, {exhausted: true}, {}, {cont: []byte{}}}
	out, err := decodeMerge(encodeMerge(in), len(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// failingCursor 在 OnNext 时返回存储层错误;
type failingCursor struct {
	protocol[model.Tuple]
	closed *int
}

var errStore = errors.New("store unavailable")

func (f *failingCursor) OnNext(context.Context) (bool, error) { return false, errStore }
func (f *failingCursor) Accept(v interfaces.Visitor) bool    { return walk(v, f) }
func (f *failingCursor) Close() error {
	if f.release() {
		*f.closed++
	}
	return nil
}

type trackedList struct {
	*ListCursor[model.Tuple]
	closed *int
}

func (c trackedList) Close() error {
	if !c.released {
		*c.closed++
	}
	return c.ListCursor.Close()
}

func TestMerge_StoreErrorClosesChildren(t *testing.T) {
	closed := 0
	children := []ChildFactory[model.Tuple]{
		func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
			l, err := NewListCursor(tuples(1, 2), cont)
			return trackedList{ListCursor: l, closed: &closed}, err
		},
		func([]byte) (interfaces.Cursor[model.Tuple], error) {
			return &failingCursor{protocol: protocol[model.Tuple]{name: "failing"}, closed: &closed}, nil
		},
	}
	cur, err := NewUnionCursor(identity, false, children, nil, nil)
	require.NoError(t, err)
	_, err = cur.OnNext(context.Background())
	assert.True(t, errors.Is(err, errStore))
	assert.Equal(t, 2, closed)
	_, err = cur.OnNext(context.Background())
	assert.True(t, errors.Is(err, common.ErrCursorClosed))
}

type panickingCursor struct {
	failingCursor
}

func (p *panickingCursor) OnNext(context.Context) (bool, error) { panic("fetch blew up") }

func TestMerge_ChildPanicOnExecutor(t *testing.T) {
	exec, err := utils.NewExecutor(2, nil)
	require.NoError(t, err)
	defer exec.Close()

	closed := 0
	children := []ChildFactory[model.Tuple]{
		func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
			l, err := NewListCursor(tuples(1, 2), cont)
			return trackedList{ListCursor: l, closed: &closed}, err
		},
		func([]byte) (interfaces.Cursor[model.Tuple], error) {
			return &panickingCursor{failingCursor{protocol: protocol[model.Tuple]{name: "panicking"}, closed: &closed}}, nil
		},
	}
	cur, err := NewUnionCursor(identity, false, children, nil, &MergeOptions{Executor: exec})
	require.NoError(t, err)
	_, err = cur.OnNext(context.Background())
	assert.True(t, errors.Is(err, common.ErrChildPanic))
	assert.Equal(t, 2, closed)
	_, err = cur.OnNext(context.Background())
	assert.True(t, errors.Is(err, common.ErrCursorClosed))
}

func TestMerge_FactoryErrorClosesOpened(t *testing.T) {
	closed := 0
	children := []ChildFactory[model.Tuple]{
		func(cont []byte) (interfaces.Cursor[model.Tuple], error) {
			l, err := NewListCursor(tuples(1), cont)
			return trackedList{ListCursor: l, closed: &closed}, err
		},
		func([]byte) (interfaces.Cursor[model.Tuple], error) { return nil, errStore },
	}
	_, err := NewIntersectionCursor(identity, false, children, nil, nil)
	assert.True(t, errors.Is(err, errStore))
	assert.Equal(t, 1, closed)
}

func TestMerge_CanceledContext(t *testing.T) {
	cur, err := NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{
		listFactory(tuples(1)), listFactory(tuples(2)),
	}, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cur.OnNext(ctx)
	assert.True(t, errors.Is(err, context.Canceled))

	// 取消不会被记住, 之后可以继续;
	steps, _, _ := drain[model.Tuple](t, cur)
	assert.Equal(t, tuples(1, 2), elems(steps))
}

func TestIllegalContinuationAccess(t *testing.T) {
	ctx := context.Background()
	newList := func() interfaces.Cursor[model.Tuple] {
		c, err := NewListCursor(tuples(1, 2), nil)
		require.NoError(t, err)
		return c
	}
	union, err := NewUnionCursor(identity, false, []ChildFactory[model.Tuple]{listFactory(tuples(1))}, nil, nil)
	require.NoError(t, err)
	inter, err := NewIntersectionCursor(identity, false, []ChildFactory[model.Tuple]{listFactory(tuples(1))}, nil, nil)
	require.NoError(t, err)
	for _, c := range []interfaces.Cursor[model.Tuple]{
		newList(),
		NewFilterCursor(newList(), func(model.Tuple) bool { return true }),
		NewMapCursor(newList(), identity),
		NewSkipLimitCursor(newList(), 0, 1),
		union,
		inter,
	} {
		ok, err := c.OnNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = c.Continuation()
		assert.True(t, errors.Is(err, common.ErrIllegalContinuationAccess), c.Name())
		_, err = c.Next()
		require.NoError(t, err)
		_, err = c.Continuation()
		assert.NoError(t, err, c.Name())
		require.NoError(t, c.Close())
	}
}

func TestExplain(t *testing.T) {
	inner, err := NewIntersectionCursor(identity, false, []ChildFactory[model.Tuple]{
		listFactory(tuples(1)), listFactory(tuples(1, 2)),
	}, nil, nil)
	require.NoError(t, err)
	c := NewFilterCursor[model.Tuple](inner, func(model.Tuple) bool { return true })
	assert.Equal(t, "Filter\n  Intersection(2)\n    List(1)\n    List(2)\n", Explain(c))
	assert.Equal(t, 4, Count(c))
}
