package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// fakeMiddleware scripts decisions and records what flowed through.
type fakeMiddleware struct {
	decision    Decision
	connects    int
	intercepted []domain.Activity

	// onIntercept runs inside Intercept, before returning the decision.
	onIntercept func()
}

func (m *fakeMiddleware) Connected(ctx context.Context) { m.connects++ }

func (m *fakeMiddleware) Intercept(ctx context.Context, act domain.Activity) Decision {
	m.intercepted = append(m.intercepted, act)
	if m.onIntercept != nil {
		m.onIntercept()
	}
	return m.decision
}

func TestStore_ForwardReachesSubscribers(t *testing.T) {
	mw := &fakeMiddleware{decision: Forward()}
	s := NewStore(mw, logging.NewNop())

	var got []domain.Activity
	s.Subscribe(func(act domain.Activity) { got = append(got, act) })

	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage, Text: "hi"})

	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
	assert.Len(t, mw.intercepted, 1)
}

func TestStore_SuppressNeverReachesSubscribers(t *testing.T) {
	mw := &fakeMiddleware{decision: Suppress()}
	s := NewStore(mw, logging.NewNop())

	var got []domain.Activity
	s.Subscribe(func(act domain.Activity) { got = append(got, act) })

	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage, Text: "card"})

	assert.Empty(t, got)
	assert.Len(t, mw.intercepted, 1, "the middleware still saw it")
}

func TestStore_ReplaceSubstitutesActivity(t *testing.T) {
	mw := &fakeMiddleware{decision: Replace(domain.Activity{Type: domain.TypeMessage, Text: "redacted"})}
	s := NewStore(mw, logging.NewNop())

	var got []domain.Activity
	s.Subscribe(func(act domain.Activity) { got = append(got, act) })

	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage, Text: "original"})

	require.Len(t, got, 1)
	assert.Equal(t, "redacted", got[0].Text)
}

func TestStore_MultipleSubscribersInOrder(t *testing.T) {
	mw := &fakeMiddleware{decision: Forward()}
	s := NewStore(mw, logging.NewNop())

	var order []string
	s.Subscribe(func(domain.Activity) { order = append(order, "first") })
	s.Subscribe(func(domain.Activity) { order = append(order, "second") })

	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestStore_ConnectedPassesThroughMiddleware(t *testing.T) {
	mw := &fakeMiddleware{decision: Forward()}
	s := NewStore(mw, logging.NewNop())

	s.HandleConnected(context.Background())
	assert.Equal(t, 1, mw.connects)
}

func TestStore_ClosedDropsEverything(t *testing.T) {
	mw := &fakeMiddleware{decision: Forward()}
	s := NewStore(mw, logging.NewNop())

	var got []domain.Activity
	s.Subscribe(func(act domain.Activity) { got = append(got, act) })

	s.Close()
	s.HandleConnected(context.Background())
	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage})

	assert.Empty(t, got)
	assert.Zero(t, mw.connects)
	assert.Empty(t, mw.intercepted)
}

func TestStore_CloseDuringInterceptDiscardsOutcome(t *testing.T) {
	mw := &fakeMiddleware{decision: Forward()}
	s := NewStore(mw, logging.NewNop())
	mw.onIntercept = func() { s.Close() }

	var got []domain.Activity
	s.Subscribe(func(act domain.Activity) { got = append(got, act) })

	s.HandleActivity(context.Background(), domain.Activity{Type: domain.TypeMessage})

	assert.Empty(t, got, "an outcome arriving after teardown is discarded")
}
