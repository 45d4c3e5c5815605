package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus[AnalysisCompleted]()
	var got []string

	bus.Subscribe(func(e AnalysisCompleted) { got = append(got, "first:"+e.Label) })
	bus.Subscribe(func(e AnalysisCompleted) { got = append(got, "second:"+e.Label) })

	bus.Publish(AnalysisCompleted{Label: "Melanoma"})

	assert.Equal(t, []string{"first:Melanoma", "second:Melanoma"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus[AnalysisFailed]()
	calls := 0

	unsub := bus.Subscribe(func(AnalysisFailed) { calls++ })
	bus.Publish(AnalysisFailed{})
	unsub()
	unsub()
	bus.Publish(AnalysisFailed{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus[AnalysisCompleted]()
	late := 0

	bus.Subscribe(func(AnalysisCompleted) {
		bus.Subscribe(func(AnalysisCompleted) { late++ })
	})

	bus.Publish(AnalysisCompleted{})
	assert.Equal(t, 0, late)
	assert.Equal(t, 2, bus.Len())
}
