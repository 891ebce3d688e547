package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/viralforge/suggestbox/internal/feed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsIntent is a user intent forwarded by the page: update the draft buffer
// or submit the current draft.
type wsIntent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// liveSession hosts one feed session per websocket connection: anonymous
// bootstrap, identity-gated subscription, view pushes down, intents up.
// Disconnecting tears the session down, which releases every subscription
// before the handler returns.
func (h *Handler) liveSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logHTTPOperationError(r.Context(), "ws_upgrade", http.StatusBadRequest, "WS_UPGRADE_FAILED", "websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	// Latest-wins view queue: if the page is slow, intermediate frames are
	// dropped and only the most current state is written. Every view is
	// complete, so skipping one is lossless.
	views := make(chan feed.View, 1)
	push := func(view feed.View) {
		for {
			select {
			case views <- view:
				return
			default:
				select {
				case <-views:
				default:
				}
			}
		}
	}

	session := feed.NewSession(h.cfg, h.newProvider(), h.store, push, httpLogger())
	defer session.Close()

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case view := <-views:
				if err := conn.WriteJSON(toViewDTO(view)); err != nil {
					return
				}
			case <-quit:
				return
			}
		}
	}()

	// A fatal configuration error has already been pushed as an error view;
	// the read loop still runs so the page keeps its connection until it
	// disconnects, and the session guards make every intent a no-op.
	_ = session.Start(r.Context())
	push(session.View())

	for {
		var intent wsIntent
		if err := conn.ReadJSON(&intent); err != nil {
			break
		}
		switch intent.Type {
		case "updateDraft":
			session.UpdateDraft(intent.Text)
		case "submit":
			// Submission awaits the write acknowledgment; run it off the
			// intent loop so draft edits keep flowing. The coordinator
			// rejects overlapping submissions on its own.
			go session.Submit(r.Context())
		}
	}

	session.Close()
	close(quit)
	<-done
}
