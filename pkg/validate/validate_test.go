package validate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakimori/gokosei/pkg/rule"
)

type fakeModel struct {
	calls int32
	resp  string
	err   error
}

func (m *fakeModel) Infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.resp, nil
}

func pendingFinding(id, matched string) rule.Finding {
	return rule.Finding{RuleID: id, Matched: matched, Validation: rule.ValidationPending}
}

func TestRunResolvesVerdicts(t *testing.T) {
	m := &fakeModel{resp: `[{"id":1,"valid":true},{"id":2,"valid":false}]`}
	v := New(m, nil)

	findings := []rule.Finding{
		pendingFinding("comma-density", "あ、い、う"),
		pendingFinding("ra-nuki", "見れる"),
		{RuleID: "ellipsis-style", Validation: rule.ValidationNone},
	}
	out, err := v.Run(context.Background(), "段落本文", findings)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, rule.ValidationConfirmed, out[0].Validation)
	assert.Equal(t, rule.ValidationDismissed, out[1].Validation)
	// Non-pending findings pass through untouched.
	assert.Equal(t, rule.ValidationNone, out[2].Validation)
	// Input not mutated.
	assert.Equal(t, rule.ValidationPending, findings[0].Validation)
}

func TestRunUsesCachedVerdicts(t *testing.T) {
	m := &fakeModel{resp: `[{"id":1,"valid":false}]`}
	v := New(m, nil)

	findings := []rule.Finding{pendingFinding("ra-nuki", "見れる")}

	_, err := v.Run(context.Background(), "同じ段落", findings)
	require.NoError(t, err)
	out, err := v.Run(context.Background(), "同じ段落", findings)
	require.NoError(t, err)

	assert.Equal(t, rule.ValidationDismissed, out[0].Validation)
	assert.Equal(t, int32(1), atomic.LoadInt32(&m.calls))

	confirmed, known := v.Outcome("同じ段落", findings[0])
	assert.True(t, known)
	assert.False(t, confirmed)

	// Same finding in a different paragraph is a fresh question.
	_, err = v.Run(context.Background(), "別の段落", findings)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&m.calls))
}

func TestRunUnruledFindingsStayPending(t *testing.T) {
	m := &fakeModel{resp: `[{"id":1,"valid":true}]`}
	v := New(m, nil)

	findings := []rule.Finding{
		pendingFinding("comma-density", "一つ目"),
		pendingFinding("ra-nuki", "二つ目"),
	}
	out, err := v.Run(context.Background(), "本文", findings)
	require.NoError(t, err)

	assert.Equal(t, rule.ValidationConfirmed, out[0].Validation)
	assert.Equal(t, rule.ValidationPending, out[1].Validation)
}

func TestRunGarbageResponseStaysPending(t *testing.T) {
	m := &fakeModel{resp: "判定できませんでした。"}
	v := New(m, nil)

	out, err := v.Run(context.Background(), "本文", []rule.Finding{pendingFinding("r", "m")})
	require.NoError(t, err)
	assert.Equal(t, rule.ValidationPending, out[0].Validation)
}

func TestRunNilClient(t *testing.T) {
	v := New(nil, nil)

	out, err := v.Run(context.Background(), "本文", []rule.Finding{pendingFinding("r", "m")})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, rule.ValidationPending, out[0].Validation)

	// Nothing pending means no client needed.
	_, err = v.Run(context.Background(), "本文", nil)
	assert.NoError(t, err)
}

func TestRunCancellation(t *testing.T) {
	m := &fakeModel{resp: "[]"}
	v := New(m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Run(ctx, "本文", []rule.Finding{pendingFinding("r", "m")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidateForcesReask(t *testing.T) {
	m := &fakeModel{resp: `[{"id":1,"valid":true}]`}
	v := New(m, nil)
	findings := []rule.Finding{pendingFinding("r", "m")}

	_, err := v.Run(context.Background(), "本文", findings)
	require.NoError(t, err)
	v.Invalidate()
	_, err = v.Run(context.Background(), "本文", findings)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&m.calls))
}

func TestRunModelErrorPropagates(t *testing.T) {
	m := &fakeModel{err: errors.New("connection refused")}
	v := New(m, nil)

	out, err := v.Run(context.Background(), "本文", []rule.Finding{pendingFinding("r", "m")})
	assert.Error(t, err)
	assert.Equal(t, rule.ValidationPending, out[0].Validation)
}
