package lua

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeDeliversProxy(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`
		calls = 0
		require("test:items").on("joined", function(it)
			calls = calls + 1
			got = it.name .. "#" .. it.id
		end)
	`))
	assert.Equal(t, float64(0), h.rt.Global("calls"), "subscribing must not invoke the callback")

	h.src.emit("joined", item{ID: 9, Name: "zed"})

	assert.Equal(t, float64(1), h.rt.Global("calls"))
	assert.Equal(t, "zed#9", h.rt.Global("got"))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Deliveries.WithLabelValues("joined")))
}

func TestSubscribePassesOneArgument(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`
		require("test:items").on("joined", function(...)
			argc = select("#", ...)
		end)
	`))
	h.src.emit("joined", item{ID: 1})
	assert.Equal(t, float64(1), h.rt.Global("argc"))
}

func TestSubscribeRunsInRegistrationOrder(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`
		order = {}
		local m = require("test:items")
		m.on("joined", function(it) table.insert(order, "first:" .. it.name) end)
		m.on("joined", function(it) table.insert(order, "second:" .. it.name) end)
		m.on("left", function(it) table.insert(order, "left:" .. it.name) end)
	`))
	h.src.emit("joined", item{ID: 1, Name: "a"})
	h.src.emit("joined", item{ID: 2, Name: "b"})

	v, err := h.rt.Eval(`table.concat(order, ",")`)
	require.NoError(t, err)
	assert.Equal(t, "first:a,second:a,first:b,second:b", v)
}

func TestFailingCallbackDoesNotStopDelivery(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`
		local m = require("test:items")
		m.on("joined", function(it) error("callback exploded") end)
		m.on("joined", function(it) survivor = it.name end)
	`))
	h.src.emit("joined", item{ID: 3, Name: "c"})

	assert.Equal(t, "c", h.rt.Global("survivor"))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CallbackFailures.WithLabelValues("joined")))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Deliveries.WithLabelValues("joined")))

	failures := h.logs.FilterMessage("script callback failed").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["error"], "callback exploded")
}

func TestSubscribeUnknownSignal(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`require("test:items").on("never-emitted", function() fired = true end)`))
	h.src.emit("joined", item{ID: 1})
	assert.Nil(t, h.rt.Global("fired"))
	assert.Len(t, h.src.handlers["never-emitted"], 1)
}

func TestEmitAfterShutdownIsDropped(t *testing.T) {
	h := newHarness(t, "")

	require.NoError(t, h.rt.DoString(`require("test:items").on("joined", function() end)`))
	h.rt.Shutdown()

	assert.NotPanics(t, func() { h.src.emit("joined", item{ID: 1}) })
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.CallbackFailures.WithLabelValues("joined")))
}
