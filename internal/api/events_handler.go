package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shaiso/Acquire/internal/events"
)

// sseHeartbeat — интервал комментариев, удерживающих соединение.
const sseHeartbeat = 15 * time.Second

// sseBuffer — сколько уведомлений может ждать отправки клиенту.
const sseBuffer = 256

// StreamEvents отдаёт уведомления координатора как Server-Sent Events.
// GET /api/v1/events?kinds=notice,started
//
// Каждое уведомление: "event: <kind>" и "data: <json>".
// Медленный клиент теряет уведомления, координатор его не ждёт.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	var opts []events.SubscribeOption
	if kinds := r.URL.Query().Get("kinds"); kinds != "" {
		var only []events.Kind
		for _, k := range strings.Split(kinds, ",") {
			only = append(only, events.Kind(strings.TrimSpace(k)))
		}
		opts = append(opts, events.Only(only...))
	}

	ch := make(chan events.Event, sseBuffer)
	var dropped atomic.Int64
	unsubscribe := h.coordinator.Events().Subscribe(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			dropped.Add(1)
		}
	}, opts...)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("sse flush not supported", "error", err)
		return
	}

	h.logger.Debug("sse client connected", "remote_addr", r.RemoteAddr)
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("sse client disconnected", "remote_addr", r.RemoteAddr, "dropped", dropped.Load())
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}

		case ev := <-ch:
			data, err := json.Marshal(events.Data(ev))
			if err != nil {
				h.logger.Warn("failed to encode notification", "kind", ev.Kind(), "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data); err != nil {
				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}
